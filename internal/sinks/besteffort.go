// Package sinks holds the best-effort side-effect destinations of the
// pipeline: interaction memory, event broadcast, queueing and audit.
package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/internal/telemetry"
)

// ErrNotFound is returned by stores for absent keys.
var ErrNotFound = errors.New("not found")

// BestEffort runs fn and absorbs failure: errors and panics are logged at
// warn, counted against name and returned so the caller can fall through to
// a secondary. It never panics.
func BestEffort(ctx context.Context, log zerolog.Logger, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
		if err != nil {
			telemetry.SinkFailures.WithLabelValues(name).Inc()
			log.Warn().Err(err).Str("sink", name).Msg("Best-effort sink failed")
		}
	}()
	return fn(ctx)
}
