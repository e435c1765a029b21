package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mirrorloop/aegis/internal/port/messagequeue"
)

// publishEvent serializes payload to the given subject. Event delivery
// is best-effort: a publish failure never fails the operation that
// produced it.
func publishEvent(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode event", "subject", subject, "error", err)
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish event", "subject", subject, "error", err)
	}
}
