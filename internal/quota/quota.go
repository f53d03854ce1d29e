// Package quota implements the monthly usage counters behind admission.
//
// Counters are keyed {user_id}:{tier}:{yyyy-mm} in UTC and incremented with
// each backend's native atomic operation. Redis is the preferred backend,
// PostgreSQL the fallback, and the in-memory counter serves zero-config mode
// and tests.
package quota

import (
	"fmt"
	"time"

	"github.com/vortexartec/gencore/pkg/contracts"
)

var (
	_ contracts.Counter = (*RedisCounter)(nil)
	_ contracts.Counter = (*SQLCounter)(nil)
	_ contracts.Counter = (*MemoryCounter)(nil)
	_ contracts.Counter = (*Failover)(nil)
)

// MonthKey formats the counter key for the month containing t (UTC).
func MonthKey(userID, tier string, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s", userID, tier, Month(t))
}

// Month returns yyyy-mm for t in UTC.
func Month(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextMonthStart returns the first instant of the UTC month after t.
func NextMonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// TTLUntilNextMonth is the expiry applied when a counter is created at t.
func TTLUntilNextMonth(t time.Time) time.Duration {
	return NextMonthStart(t).Sub(t)
}
