package quota

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/pkg/contracts"
)

// Failover serves each call from Primary and falls back to Secondary when
// the primary errors. The two backends hold independent counts.
type Failover struct {
	Primary   contracts.Counter
	Secondary contracts.Counter
	Log       zerolog.Logger
}

func (f *Failover) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	v, err := f.Primary.Incr(ctx, key, ttl)
	if err == nil || f.Secondary == nil {
		return v, err
	}
	f.Log.Warn().Err(err).Str("op", "incr").Msg("Primary quota backend failed, using secondary")
	return f.Secondary.Incr(ctx, key, ttl)
}

func (f *Failover) Get(ctx context.Context, key string) (int64, error) {
	v, err := f.Primary.Get(ctx, key)
	if err == nil || f.Secondary == nil {
		return v, err
	}
	f.Log.Warn().Err(err).Str("op", "get").Msg("Primary quota backend failed, using secondary")
	return f.Secondary.Get(ctx, key)
}
