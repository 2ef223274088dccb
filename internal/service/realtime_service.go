package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	"github.com/noah-isme/thesisflow-api/pkg/config"
)

// RealtimeService bridges proposal set mutations to live subscribers over
// Redis pub/sub. Each group gets its own channel so clients only receive
// events for sets they are watching.
type RealtimeService struct {
	client     *redis.Client
	prefix     string
	bufferSize int
	enabled    bool
	logger     *zap.Logger
}

// NewRealtimeService constructs the service.
func NewRealtimeService(client *redis.Client, cfg config.RealtimeConfig, logger *zap.Logger) *RealtimeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "proposal-sets"
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 16
	}
	return &RealtimeService{
		client:     client,
		prefix:     prefix,
		bufferSize: buffer,
		enabled:    cfg.Enabled,
		logger:     logger,
	}
}

func (s *RealtimeService) channel(groupID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, groupID)
}

// PublishSetChanged fans an event out to subscribers of the group's channel.
// Publishing is best effort: a Redis hiccup is logged, never propagated.
func (s *RealtimeService) PublishSetChanged(ctx context.Context, event dto.ProposalSetEvent) {
	if !s.enabled || s.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode realtime event", zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, s.channel(event.GroupID), payload).Err(); err != nil {
		s.logger.Warn("failed to publish realtime event",
			zap.String("group_id", event.GroupID),
			zap.Error(err))
	}
}

// PublishNotification pushes a freshly stored notification onto the
// recipient's personal channel. Best effort, same as set events.
func (s *RealtimeService) PublishNotification(ctx context.Context, userID string, notification *models.Notification) {
	if !s.enabled || s.client == nil || notification == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		s.logger.Warn("failed to encode notification event", zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, "notifications:"+userID, payload).Err(); err != nil {
		s.logger.Warn("failed to publish notification event",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// Subscribe opens a stream of events for one group. The returned cancel
// function must be called when the client disconnects; the event channel is
// closed once the subscription ends.
func (s *RealtimeService) Subscribe(ctx context.Context, groupID string) (<-chan dto.ProposalSetEvent, func(), error) {
	if !s.enabled || s.client == nil {
		return nil, nil, fmt.Errorf("realtime updates are disabled")
	}

	sub := s.client.Subscribe(ctx, s.channel(groupID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe to group %s: %w", groupID, err)
	}

	events := make(chan dto.ProposalSetEvent, s.bufferSize)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event dto.ProposalSetEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("discarding malformed realtime event", zap.Error(err))
				continue
			}
			select {
			case events <- event:
			default:
				// Slow consumer: drop rather than block the pump.
				s.logger.Debug("dropping realtime event for slow subscriber",
					zap.String("group_id", groupID))
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close subscription", zap.Error(err))
		}
	}
	return events, cancel, nil
}
