package aside

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging
// stack (see log/zap, log/logrus, log/slog). If Logger is nil in Options,
// logging is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// Outcomes carried by the "outcome" field of controller events.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// allFieldsLabel stands in for the field name of an ALL-fields event.
const allFieldsLabel = "*"

// event builds the fields of one controller log event.
func event(a Action, key, field, outcome string) Fields {
	f := Fields{"action": a.String(), "key": key, "outcome": outcome}
	if field != "" {
		f["field"] = field
	}
	return f
}
