package events

import "github.com/rs/zerolog"

// ZerologSink is the production Sink, emitting one structured log line per
// event with a run_id field plus that event's own fields (percent/status,
// stage/status, or static/dynamic counts).
type ZerologSink struct {
	log zerolog.Logger
}

func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: log}
}

func (s *ZerologSink) Progress(runID string, p Progress) {
	s.log.Info().
		Str("run_id", runID).
		Int("percent", p.Percent).
		Str("status", p.Status).
		Msg("progress")
}

func (s *ZerologSink) StageTransition(runID string, t Transition) {
	ev := s.log.Info()
	if t.Status == StatusError {
		ev = s.log.Error()
	}
	ev.
		Str("run_id", runID).
		Str("stage", string(t.Stage)).
		Str("status", string(t.Status)).
		Msg("stage transition")
}

func (s *ZerologSink) Counts(runID string, c Counts) {
	s.log.Info().
		Str("run_id", runID).
		Int("static", c.Static).
		Int("dynamic", c.Dynamic).
		Msg("counts")
}
