package log

// MultiLogger fans one provisioning event out to several sinks. The usual
// pairing is a FileLogger keeping the durable audit trail next to a
// SlogAdapter mirroring flow progress onto the operator console.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger builds a fan-out over the given sinks, in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log hands the event to every sink. Sinks see the same Event value; a
// sink that mutates payload pointers corrupts its siblings.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
