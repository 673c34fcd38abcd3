package log

// Logger receives provisioning events: flow steps, panel REST calls,
// state transitions, and outcomes. The flow, the switch coordinator, and
// the panel simulator all emit through this interface.
type Logger interface {
	// Log records one event. Implementations must be safe for concurrent
	// use and should return quickly; emitters call Log inline.
	Log(event Event)
}

// NoopLogger discards all events. The zero value is ready to use; it is
// the default sink when an embedder configures no logging.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
