package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"PrimeBoard/internal/event"
	"PrimeBoard/internal/observability"
)

// SubscriberConfig configures the upstream log feed subscription.
type SubscriberConfig struct {
	// URL is the ws:// or wss:// endpoint of the RPC node.
	URL string

	// ProgramAddress filters the feed to logs mentioning this program.
	ProgramAddress string

	// Commitment level for the subscription. Defaults to "finalized".
	Commitment string

	// Reconnect backoff bounds. Zero values take the defaults below.
	MinReconnectWait time.Duration
	MaxReconnectWait time.Duration
}

const (
	defaultMinReconnectWait = 500 * time.Millisecond
	defaultMaxReconnectWait = 30 * time.Second
	handshakeTimeout        = 10 * time.Second
)

// Subscriber owns the persistent WebSocket subscription to the upstream log
// feed. It decodes inbound envelopes, classifies each log line, and forwards
// resulting events to the aggregator channel in arrival order. On any
// transport fault it reconnects with bounded exponential backoff and resends
// the subscription request; events emitted during the gap are lost, which is
// an openly acknowledged property of the channel.
type Subscriber struct {
	cfg     SubscriberConfig
	events  chan<- event.Event
	log     zerolog.Logger
	metrics *observability.Metrics
	dialer  websocket.Dialer
}

func NewSubscriber(cfg SubscriberConfig, events chan<- event.Event, log zerolog.Logger, metrics *observability.Metrics) *Subscriber {
	if cfg.Commitment == "" {
		cfg.Commitment = "finalized"
	}
	if cfg.MinReconnectWait <= 0 {
		cfg.MinReconnectWait = defaultMinReconnectWait
	}
	if cfg.MaxReconnectWait <= 0 {
		cfg.MaxReconnectWait = defaultMaxReconnectWait
	}

	return &Subscriber{
		cfg:     cfg,
		events:  events,
		log:     log,
		metrics: metrics,
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// subscribeRequest is the fire-and-forget control message sent on connect.
type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type mentionsFilter struct {
	Mentions []string `json:"mentions"`
}

type commitmentOption struct {
	Commitment string `json:"commitment"`
}

// logsEnvelope is one inbound upstream message. Only logsNotification
// envelopes with a non-empty logs list are processed; all other shapes
// (subscription confirmations included) are ignored without error.
type logsEnvelope struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Logs []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run maintains the subscription until ctx is canceled. Transient transport
// faults never terminate the process: retries are unbounded. A session that
// delivered at least one recognized envelope resets the backoff schedule, so
// a long healthy run is followed by a fast reconnect rather than whatever
// interval earlier outages had escalated to.
func (s *Subscriber) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.MinReconnectWait
	bo.MaxInterval = s.cfg.MaxReconnectWait
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			return nil
		}

		delivered, err := s.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if delivered {
			bo.Reset()
		}

		if s.metrics != nil {
			s.metrics.UpstreamReconnects.Inc()
		}

		wait := bo.NextBackOff()
		s.log.Warn().Err(err).Dur("retry_in", wait).Msg("upstream connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// runSession dials, subscribes, and reads envelopes until the connection
// fails or ctx is canceled. The returned bool reports whether the session
// processed at least one recognized notification.
func (s *Subscriber) runSession(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return false, err
	}

	// Unblock the read loop when ctx is canceled.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sessionDone:
		}
	}()
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentionsFilter{Mentions: []string{s.cfg.ProgramAddress}},
			commitmentOption{Commitment: s.cfg.Commitment},
		},
	}); err != nil {
		return false, err
	}

	s.log.Info().Str("url", s.cfg.URL).Str("program", s.cfg.ProgramAddress).Msg("upstream subscription established")
	if s.metrics != nil {
		s.metrics.UpstreamConnected.Set(1)
		defer s.metrics.UpstreamConnected.Set(0)
	}

	delivered := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		handled, err := s.handleEnvelope(ctx, data)
		if err != nil {
			return delivered, err
		}
		if handled {
			delivered = true
		}
	}
}

// handleEnvelope decodes one inbound message and feeds each contained log
// line through the parser. Parsed events are forwarded synchronously, in the
// line's arrival order within the envelope. The returned bool reports
// whether the envelope was a recognized notification; an error means the
// forward was aborted by ctx cancellation.
func (s *Subscriber) handleEnvelope(ctx context.Context, data []byte) (bool, error) {
	var env logsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		if s.metrics != nil {
			s.metrics.EnvelopesIgnored.Inc()
		}
		return false, nil
	}

	if env.Method != "logsNotification" || len(env.Params.Result.Value.Logs) == 0 {
		if s.metrics != nil {
			s.metrics.EnvelopesIgnored.Inc()
		}
		return false, nil
	}

	for _, line := range env.Params.Result.Value.Logs {
		if s.metrics != nil {
			s.metrics.LogLinesReceived.Inc()
		}

		evt, result := ParseLogLine(line)
		switch result {
		case ParseMiss:
			if s.metrics != nil {
				s.metrics.ParseMisses.Inc()
			}
			continue
		case ParseMalformed:
			// One bad numeric field drops the single event, never the
			// rest of the envelope.
			s.log.Warn().Str("line", line).Msg("malformed numeric field in log line")
			if s.metrics != nil {
				s.metrics.MalformedEvents.Inc()
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.EventsParsed.WithLabelValues(evt.EventType().String()).Inc()
		}

		select {
		case s.events <- evt:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}

	return true, nil
}
