package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/parcelgrid/wallet-backend/pkg/config"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

// PubSubSink publishes audit events to a Pub/Sub topic. Publish results are
// awaited so a dropped event is at least visible in the logs.
type PubSubSink struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logg      *logger.Logger
}

// NewPubSubSink connects to Pub/Sub and binds the configured topic.
func NewPubSubSink(ctx context.Context, cfg config.AuditConfig, logg *logger.Logger) (*PubSubSink, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}
	if strings.TrimSpace(cfg.TopicID) == "" {
		return nil, fmt.Errorf("audit topic id is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	topic := cfg.TopicID
	if !strings.HasPrefix(topic, "projects/") {
		topic = fmt.Sprintf("projects/%s/topics/%s", cfg.ProjectID, cfg.TopicID)
	}

	if logg != nil {
		logg.Info(ctx, "audit pubsub sink initialized")
	}
	return &PubSubSink{
		client:    client,
		publisher: client.Publisher(topic),
		logg:      logg,
	}, nil
}

func (s *PubSubSink) Emit(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logg.Error(ctx, "marshaling audit event", err)
		return
	}
	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":      event.Type,
			"wallet_id": event.WalletID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		s.logg.Error(ctx, "publishing audit event", err)
	}
}

// Close releases the Pub/Sub client resources.
func (s *PubSubSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	s.publisher.Stop()
	return s.client.Close()
}
