package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vortexartec/gencore/internal/quota"
)

func TestMonthKey(t *testing.T) {
	ts := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "42:essential:2026-03", quota.MonthKey("42", "essential", ts))

	// Keys are computed in UTC regardless of the caller's zone.
	tokyo := time.FixedZone("JST", 9*3600)
	local := time.Date(2026, 4, 1, 5, 0, 0, 0, tokyo)
	assert.Equal(t, "42:essential:2026-03", quota.MonthKey("42", "essential", local))
}

func TestNextMonthStart(t *testing.T) {
	cases := []struct {
		at   time.Time
		want time.Time
	}{
		{time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, quota.NextMonthStart(c.at))
	}
}

func TestTTLUntilNextMonth(t *testing.T) {
	at := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, quota.TTLUntilNextMonth(at))
}
