package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types recorded by the auth flows.
const (
	EventSessionCreated = "session_created"
	EventSignOut        = "sign_out"
	EventLoginFailed    = "login_failed"
	EventIdentitySynced = "identity_synced"
	EventRoleChanged    = "role_changed"
)

// Event is a single audit trail entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recorder receives audit events. Append failures must never break the flow
// that emitted the event.
type Recorder interface {
	Record(ctx context.Context, event Event)
	Recent(ctx context.Context, n int64) ([]Event, error)
}

// NoOp drops audit events.
type NoOp struct{}

func (NoOp) Record(context.Context, Event) {}

func (NoOp) Recent(context.Context, int64) ([]Event, error) { return nil, nil }

const (
	trailKey   = "audit:auth"
	maxEntries = 10000
)

// Trail is an append-only, Redis-list backed audit log. Entries beyond
// maxEntries are trimmed oldest-first.
type Trail struct {
	redis  redis.UniversalClient
	logger *zap.Logger
}

func NewTrail(redisClient redis.UniversalClient, logger *zap.Logger) *Trail {
	return &Trail{redis: redisClient, logger: logger}
}

func (t *Trail) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.logger.Error("Failed to marshal audit event", zap.Error(err))
		return
	}

	pipe := t.redis.TxPipeline()
	pipe.LPush(ctx, trailKey, data)
	pipe.LTrim(ctx, trailKey, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Error("Failed to append audit event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

// Recent returns up to n most recent events, newest first.
func (t *Trail) Recent(ctx context.Context, n int64) ([]Event, error) {
	if n <= 0 {
		n = 100
	}

	raw, err := t.redis.LRange(ctx, trailKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			t.logger.Warn("Skipping corrupt audit entry", zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}
