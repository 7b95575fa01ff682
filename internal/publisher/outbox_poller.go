package publisher

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	r "github.com/fjod/storefront/internal/repository"
)

const ordersTopic = "storefront-orders"

// messageWriter is the slice of kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains the outbox table into Kafka and fails over
// checkout sessions that died mid-submit. Events stay in the outbox
// until the publish succeeds, so a broker outage delays delivery but
// never loses an order.
type OutboxPoller struct {
	eventTick      time.Duration
	recoveryTick   time.Duration
	stuckThreshold time.Duration
	repo           r.RepoInterface
	writer         messageWriter
}

func NewOutboxPoller(repo r.RepoInterface, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  ordersTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:      time.Second,
		recoveryTick:   time.Second * 5,
		stuckThreshold: time.Minute * 5,
		repo:           repo,
		writer:         w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Printf("failed to publish event id = %v: %v", event.ID, err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Printf("failed to mark event as processed id = %v: %v", event.ID, err)
			continue
		}
	}
}

// recoverStuckSessions fails sessions that entered SUBMITTING_ORDER and
// never reached a terminal status. The process died mid-submit; the
// buyer will see the failure and can retry from the shipping form.
func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	ids, err := p.repo.GetStuckSessions(ctx, p.stuckThreshold)
	if err != nil {
		log.Printf("failed to get stuck sessions: %v", err)
		return
	}
	for _, id := range ids {
		log.Printf("failing stuck checkout session: %v", id)
		if err := p.repo.MarkSessionFailed(ctx, id); err != nil {
			log.Printf("failed to mark session %v as failed: %v", id, err)
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // session id, keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
