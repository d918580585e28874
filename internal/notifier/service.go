// Package notifier projects order events onto the Redis status cache and a
// websocket feed for the merchant app.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/orderfood/preorder.git/internal/orders"
	"github.com/orderfood/preorder.git/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	Hub         *Hub
	ServiceName string
	Log         *logrus.Logger
}

func (s *Service) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// HandleEvent is the consumer handler for every order topic. Events are
// deduped by event id, so a redelivered message refreshes nothing twice.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	status, ok := statusOf(env.EventType)
	if !ok {
		return nil // not an order status event
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	if env.CorrelationID != "" {
		key := fmt.Sprintf(redisx.KeyOrderStatus, env.CorrelationID)
		body := fmt.Sprintf(`{"status":%d}`, status)
		if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
			s.log().WithError(err).Warn("status cache update")
		}
	}

	if s.Hub != nil {
		s.Hub.Broadcast(m.Value)
	}
	s.log().WithFields(logrus.Fields{
		"event":    env.EventType,
		"order_id": env.CorrelationID,
	}).Debug("event projected")
	return nil
}

func statusOf(eventType string) (orders.Status, bool) {
	switch eventType {
	case orders.EventOrderCreated:
		return orders.StatusPending, true
	case orders.EventOrderPaid:
		return orders.StatusPaid, true
	case orders.EventOrderCancelled:
		return orders.StatusCancelled, true
	}
	return 0, false
}
