package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PrimeBoard/internal/event"
	"PrimeBoard/internal/observability"
)

// Outbound is one applied domain event ready for relay to NATS consumers.
type Outbound struct {
	Kind       string      `json:"kind"`
	Event      event.Event `json:"event"`
	ObservedAt time.Time   `json:"observed_at"`
}

// Publisher relays applied domain events to NATS JetStream for downstream
// consumers (alerting, archival, analytics). Subjects follow the pattern
// prime.board.events.{kind}. The relay is best-effort: publish failures are
// logged, never propagated, and a full input channel drops events upstream.
type Publisher struct {
	js      jetstream.JetStream
	in      <-chan Outbound
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, in <-chan Outbound, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		in:      in,
		log:     log,
		metrics: metrics,
	}
}

// Run starts the outbound relay loop.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case out, ok := <-p.in:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().Err(err).Str("kind", out.Kind).Msg("outbound publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.OutboundPublished.Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out Outbound) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, SubjectFor(out.Kind), data)
	return err
}

// SubjectFor returns the NATS subject for an event kind.
func SubjectFor(kind string) string {
	return fmt.Sprintf("prime.board.events.%s", kind)
}

// EnsureOutboundStream creates the outbound events stream if needed.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PRIME_BOARD_EVENTS",
		Subjects:  []string{"prime.board.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
