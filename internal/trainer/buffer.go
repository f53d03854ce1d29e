// Package trainer decides when accumulated feedback warrants a retraining job
// and submits it to the batch backend.
package trainer

import (
	"sync"

	"github.com/vortexartec/gencore/pkg/models"
)

// Buffer accumulates feedback records between retraining jobs.
type Buffer struct {
	mu      sync.Mutex
	records []models.FeedbackRecord
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a record and returns the new length.
func (b *Buffer) Append(rec models.FeedbackRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	return len(b.records)
}

// Drain takes every buffered record, leaving the buffer empty.
func (b *Buffer) Drain() []models.FeedbackRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.records
	b.records = nil
	return out
}

// Restore puts drained records back ahead of anything appended since.
func (b *Buffer) Restore(recs []models.FeedbackRecord) {
	if len(recs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(append(make([]models.FeedbackRecord, 0, len(recs)+len(b.records)), recs...), b.records...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// AverageQuality is the mean quality of buffered records, or 0 when empty.
func (b *Buffer) AverageQuality() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return averageQuality(b.records)
}

func averageQuality(recs []models.FeedbackRecord) float64 {
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recs {
		sum += r.Quality
	}
	return sum / float64(len(recs))
}
