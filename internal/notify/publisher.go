package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"salon-service/internal/connections/rabbitmq"
	"salon-service/internal/domain"
	"salon-service/internal/routing"
)

// Publisher pushes revision broadcasts and comandera tickets through the
// broker. It implements the store's RevisionNotifierInterface and
// TicketSinkInterface.
type Publisher struct {
	client *rabbitmq.Client
}

func NewPublisher(client *rabbitmq.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) NotifyRevision(ctx context.Context, ev domain.RevisionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode revision event: %w", err)
	}
	correlation := fmt.Sprintf("mesa-%d-rev-%d", ev.TableID, ev.Revision)
	return p.client.Publish(ctx, rabbitmq.RevisionExchange, "", uuid.NewString(), correlation, body)
}

func (p *Publisher) PublishTickets(ctx context.Context, tickets []routing.Ticket) error {
	for _, tk := range tickets {
		msg := domain.TicketMessage{
			PrinterID:   tk.PrinterID,
			PrinterName: tk.PrinterName,
			TableNumber: tk.TableNumber,
			Items:       tk.Items,
			Degraded:    tk.Degraded,
			IssuedAt:    tk.IssuedAt,
		}
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode ticket: %w", err)
		}
		category := domain.PrinterCategory("mixed")
		if len(tk.Items) > 0 {
			category = tk.Items[0].Category
		}
		key := fmt.Sprintf("comanda.%s.%d", category, tk.PrinterID)
		correlation := fmt.Sprintf("mesa-%d", tk.TableNumber)
		if err := p.client.Publish(ctx, rabbitmq.TicketExchange, key, uuid.NewString(), correlation, body); err != nil {
			return fmt.Errorf("publish ticket to printer %d: %w", tk.PrinterID, err)
		}
	}
	return nil
}
