package projector

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service projects order events into Redis read models: the cached order
// status and the catalog generation that product listings are keyed on.
type Service struct {
	Redis       *redis.Client
	Catalog     Invalidator
	ServiceName string
}

// Handle is installed as the consumer handler. Each event id is applied at
// most once. A failed apply releases the dedup key and returns the error, and
// the consumer retries the same message before moving past it.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// undecodable, retrying will not help
		logging.Log(logging.Fields{Service: s.ServiceName, Step: "decode", Status: "skipped", Error: err.Error()})
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !fresh {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		_ = s.Redis.Del(ctx, dkey).Err()
		return err
	}
	logging.Log(logging.Fields{
		Service: s.ServiceName,
		EventID: env.EventID,
		OrderID: env.CorrelationID,
		Step:    env.EventType,
		Status:  "applied",
	})
	return nil
}

func (s *Service) apply(ctx context.Context, env kafkax.Envelope) error {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.setStatus(ctx, env, p.OrderID, orders.StatusPending); err != nil {
			return err
		}
		return s.Catalog.Invalidate(ctx)

	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.setStatus(ctx, env, p.OrderID, orders.StatusCancelled); err != nil {
			return err
		}
		return s.Catalog.Invalidate(ctx)

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, env, p.OrderID, p.To)

	case orders.EventProductChanged:
		return s.Catalog.Invalidate(ctx)
	}
	return nil
}

func (s *Service) setStatus(ctx context.Context, env kafkax.Envelope, orderID string, st orders.Status) error {
	written, err := redisx.SetStatus(ctx, s.Redis, orderID, string(st), env.OccurredAt)
	if err != nil {
		return err
	}
	if !written {
		logging.Log(logging.Fields{
			Service: s.ServiceName,
			EventID: env.EventID,
			OrderID: orderID,
			Step:    env.EventType,
			Status:  "stale_status_skipped",
		})
	}
	return nil
}
