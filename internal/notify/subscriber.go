package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"salon-service/internal/common/logger"
	"salon-service/internal/connections/rabbitmq"
	"salon-service/internal/domain"
	"salon-service/internal/recovery"
)

// Subscriber consumes the revision fanout and keeps this process honest:
// events from other origins invalidate the local slot and trigger a per-table
// reconciliation, which is the source of truth on conflicting notifications.
type Subscriber struct {
	client   *rabbitmq.Client
	store    recovery.InvalidatorInterface
	recovery *recovery.Service
	origin   string
	lg       *logger.Logger
}

func NewSubscriber(client *rabbitmq.Client, store recovery.InvalidatorInterface,
	rec *recovery.Service, origin string, lg *logger.Logger) *Subscriber {
	if lg == nil {
		lg = logger.New("revision-subscriber")
	}
	return &Subscriber{client: client, store: store, recovery: rec, origin: origin, lg: lg}
}

// Run blocks until the context is cancelled or the delivery channel closes.
func (s *Subscriber) Run(ctx context.Context) error {
	msgs, err := s.client.Consume(rabbitmq.RevisionQueue, s.origin, 1)
	if err != nil {
		return err
	}
	s.lg.Info("subscriber_started", map[string]any{"queue": rabbitmq.RevisionQueue, "origin": s.origin})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(ctx, d)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, d amqp.Delivery) {
	var ev domain.RevisionEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		s.lg.Error("bad_revision_event", err, nil)
		_ = d.Nack(false, false)
		return
	}
	if ev.Origin == s.origin {
		// our own write coming back around
		_ = d.Ack(false)
		return
	}

	if s.store != nil {
		s.store.Invalidate(ev.TableID)
	}
	if s.recovery != nil {
		report, err := s.recovery.ReconcileTable(ctx, ev.TableID)
		if err != nil {
			s.lg.Error("reconcile_failed", err, map[string]any{"table_id": ev.TableID})
			_ = d.Nack(false, true)
			return
		}
		if len(report.Anomalies) > 0 {
			s.lg.Info("reconcile_repaired", map[string]any{
				"table_id": ev.TableID, "anomalies": len(report.Anomalies),
			})
		}
	}
	s.lg.Debug("revision_observed", map[string]any{
		"table_id": ev.TableID, "revision": ev.Revision, "origin": ev.Origin,
	})
	_ = d.Ack(false)
}
