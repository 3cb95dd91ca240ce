package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every event to the structured log. It backs the in-app
// notification feed in development.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notify.log").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, ev Event) error {
	e := s.log.Info().
		Str("eventId", ev.ID).
		Str("event", string(ev.Type)).
		Str("applicationId", ev.ApplicationID).
		Str("submittedBy", ev.SubmittedBy).
		Time("occurredAt", ev.OccurredAt)
	if ev.Remarks != "" {
		e = e.Str("remarks", ev.Remarks)
	}
	if ev.RejectionMessage != "" {
		e = e.Str("rejectionMessage", ev.RejectionMessage)
	}
	e.Msg("application notification")
	return nil
}
