package audit

import (
	"context"

	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

// LogSink writes audit events to the structured log. Used when Pub/Sub is
// disabled, typically in dev and tests.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink builds a logging sink.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"audit_type":     event.Type,
		"wallet_id":      event.WalletID.String(),
		"actor":          event.Actor,
		"correlation_id": event.CorrelationID,
		"payload":        event.Payload,
	})
	s.logg.Info(ctx, "audit event")
}
