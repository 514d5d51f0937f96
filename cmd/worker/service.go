package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/danielvega/tradeyard-backend/internal/consumers/chat"
	"github.com/danielvega/tradeyard-backend/internal/consumers/reviews"
	"github.com/danielvega/tradeyard-backend/pkg/config"
	"github.com/danielvega/tradeyard-backend/pkg/db"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/pubsub"
	"github.com/danielvega/tradeyard-backend/pkg/redis"
)

type envelopeHandler interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

type ServiceParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              *db.Client
	Redis           *redis.Client
	PubSub          *pubsub.Client
	ChatConsumer    *chat.Consumer
	ReviewsConsumer *reviews.Consumer
}

// Service hosts both event consumers: chat system messages off the order
// events subscription and review obligations off the completions
// subscription.
type Service struct {
	cfg     *config.Config
	logg    *logger.Logger
	db      *db.Client
	redis   *redis.Client
	pubsub  *pubsub.Client
	chat    *chat.Consumer
	reviews *reviews.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.ChatConsumer == nil {
		return nil, errors.New("chat consumer is required")
	}
	if params.ReviewsConsumer == nil {
		return nil, errors.New("reviews consumer is required")
	}

	return &Service{
		cfg:     params.Config,
		logg:    params.Logger,
		db:      params.DB,
		redis:   params.Redis,
		pubsub:  params.PubSub,
		chat:    params.ChatConsumer,
		reviews: params.ReviewsConsumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- receive(ctx, s.logg, s.pubsub.OrderEventsSubscription(), s.chat)
	}()
	go func() {
		errCh <- receive(ctx, s.logg, s.pubsub.CompletionsSubscription(), s.reviews)
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
		}
	}
}

// receive pumps one subscription into an envelope handler. Handler errors
// nack so the broker redelivers; malformed messages are acked away since
// redelivery cannot fix them.
func receive(ctx context.Context, logg *logger.Logger, sub *gcppubsub.Subscriber, handler envelopeHandler) error {
	if sub == nil {
		return errors.New("subscription is not configured")
	}
	return sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			logg.Error(logCtx, "failed to decode event envelope", err)
			msg.Ack()
			return
		}

		if err := handler.Process(ctx, eventType, envelope); err != nil {
			logg.Error(logCtx, "event processing failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
