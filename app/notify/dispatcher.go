package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/metrics"
)

// Sink delivers an event over one channel (log, e-mail, ...).
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Dispatcher fans each event out to every sink. A failing sink is logged and
// does not stop the others.
type Dispatcher struct {
	sinks   []Sink
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(log zerolog.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		log:     log.With().Str("component", "notify.dispatcher").Logger(),
		metrics: m,
	}
}

func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		if err := s.Send(ctx, ev); err != nil {
			d.log.Error().Err(err).
				Str("sink", s.Name()).
				Str("event", string(ev.Type)).
				Str("applicationId", ev.ApplicationID).
				Msg("notification delivery failed")
			d.metrics.NotificationDelivered(s.Name(), false)
			continue
		}
		d.metrics.NotificationDelivered(s.Name(), true)
	}
}
