package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"PrimeBoard/internal/event"
	"PrimeBoard/internal/ingestion"
	"PrimeBoard/internal/observability"
	"PrimeBoard/internal/state"
)

// Sink receives snapshots after each state-changing apply.
type Sink interface {
	Publish(state.Snapshot)
}

// Aggregator is the single-writer apply loop: it consumes parsed events from
// the ingestion channel one at a time, applies them to the store, and hands a
// fresh snapshot to the sink whenever observable state changed. No two
// mutations ever run concurrently; the aggregator goroutine is the store's
// only writer.
type Aggregator struct {
	store    *state.Store
	seen     *state.SeenSet
	events   <-chan event.Event
	sink     Sink
	outbound chan<- ingestion.Outbound // nil when the NATS relay is disabled
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func NewAggregator(
	store *state.Store,
	seen *state.SeenSet,
	events <-chan event.Event,
	sink Sink,
	outbound chan<- ingestion.Outbound,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Aggregator {
	return &Aggregator{
		store:    store,
		seen:     seen,
		events:   events,
		sink:     sink,
		outbound: outbound,
		log:      log,
		metrics:  metrics,
	}
}

// Run drains the event channel until ctx is canceled or the channel closes.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-a.events:
			if !ok {
				return nil
			}
			a.apply(evt)
		}
	}
}

func (a *Aggregator) apply(evt event.Event) {
	var (
		changed bool
		err     error
	)

	switch e := evt.(type) {
	case *event.LeaderboardUpdate:
		changed, err = a.store.ApplyLeaderboard(e.User, e.Points)

	case *event.BalanceUpdate:
		changed, err = a.store.ApplyBalance(e.Name, e.Value)

	case *event.WinnerAnnouncement:
		changed, err = a.store.ApplyWinner(e.User, e.Sol, e.PowerUp)

	case *event.PrimeFound:
		a.applyPrime(e)
		return

	default:
		return
	}

	kind := evt.EventType().String()

	if err != nil {
		// One bad event is rejected and logged; the store is untouched
		// and later events are unaffected.
		a.log.Warn().Err(err).Str("kind", kind).Msg("event rejected")
		if a.metrics != nil {
			a.metrics.EventsRejected.WithLabelValues(kind).Inc()
		}
		return
	}

	if a.metrics != nil {
		a.metrics.EventsApplied.WithLabelValues(kind).Inc()
	}

	if !changed {
		return
	}

	a.sink.Publish(a.store.Snapshot())
	if a.metrics != nil {
		a.metrics.SnapshotsPublished.Inc()
	}

	if a.outbound != nil {
		select {
		case a.outbound <- ingestion.Outbound{Kind: kind, Event: evt, ObservedAt: time.Now()}:
		default:
			if a.metrics != nil {
				a.metrics.OutboundDrops.Inc()
			}
		}
	}
}

// applyPrime reports a prime-slot discovery at most once per retention
// window. Diagnostic only: never touches the snapshot, never broadcasts.
func (a *Aggregator) applyPrime(e *event.PrimeFound) {
	if !a.seen.Observe(e.Number) {
		if a.metrics != nil {
			a.metrics.PrimeDuplicates.Inc()
		}
		return
	}

	a.log.Info().Uint64("number", e.Number).Msg("prime slot discovered")
	if a.metrics != nil {
		a.metrics.PrimeDiscoveries.Inc()
		a.metrics.SeenSetSize.Set(float64(a.seen.Size()))
	}
}
