// Package events ingests usage events: balances are deducted
// synchronously, the analytics stream write is fire-and-forget.
package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "usagegate:events"

// Event is one recorded usage occurrence.
type Event struct {
	ID         string       `json:"id"`
	OrgID      snowflake.ID `json:"organization_id"`
	CustomerID string       `json:"customer_id"`
	FeatureID  string       `json:"feature_id"`
	EntityID   string       `json:"entity_id,omitempty"`
	Quantity   float64      `json:"quantity"`
	Timestamp  time.Time    `json:"timestamp"`
}

// StreamRecorder appends events to the analytics stream. When the
// capability is off every write is a no-op, so both availability states
// run through the same code path.
type StreamRecorder struct {
	rdb     *redis.Client
	log     *zap.Logger
	enabled bool
}

func NewStreamRecorder(rdb *redis.Client, log *zap.Logger, enabled bool) *StreamRecorder {
	return &StreamRecorder{
		rdb:     rdb,
		log:     log.Named("events.recorder"),
		enabled: enabled,
	}
}

func (r *StreamRecorder) Enabled() bool { return r.enabled }

// Record appends one event. Failures are logged, never surfaced: the
// stream is an analytics sink, not part of the decision path.
func (r *StreamRecorder) Record(ctx context.Context, ev Event) {
	if !r.enabled || r.rdb == nil {
		return
	}

	err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"id":          ev.ID,
			"org_id":      ev.OrgID.String(),
			"customer_id": ev.CustomerID,
			"feature_id":  ev.FeatureID,
			"entity_id":   ev.EntityID,
			"quantity":    ev.Quantity,
			"timestamp":   ev.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		r.log.Warn("event stream write failed",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}
}
