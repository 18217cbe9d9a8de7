package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"rdtransport/pkg/transport"
)

// Log levels, kept for callers that used the old numeric levels directly.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	base.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum log level.
func SetLevel(level int) {
	switch level {
	case LevelDebug:
		base.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		base.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		base.SetLevel(logrus.WarnLevel)
	default:
		base.SetLevel(logrus.ErrorLevel)
	}
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	base.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

// Success logs a successful-completion message at info level.
func Success(format string, args ...interface{}) {
	base.WithField("result", "ok").Infof(format, args...)
}

// Fatal logs a fatal error and exits the process.
func Fatal(format string, args ...interface{}) {
	base.Fatalf(format, args...)
}

// Section prints a section header to stdout, outside the structured log
// stream — useful for CLI startup banners.
func Section(title string) {
	border := "───────────────────────────────────────────"
	fmt.Printf("\n%s\n %s\n%s\n\n", border, title, border)
}

// Attach subscribes structured log lines to the handshake, discard,
// retransmit and window-update events an Endpoint raises, so
// connection-level behavior shows up in logs without transport code
// importing logrus itself. Sent, received, delivered and bytes-in-flight
// events are not logged.
func Attach(bus *transport.EventBus, connID string) {
	log := func(ev transport.Event, fields logrus.Fields, msg string) {
		base.WithFields(fields).WithField("conn", connID).Debug(msg)
	}

	bus.Subscribe(transport.EventHandshakeComplete, func(ev transport.Event) {
		base.WithField("conn", connID).WithField("seq", ev.Seq).Info("handshake complete")
	})
	bus.Subscribe(transport.EventCorruptDiscarded, func(ev transport.Event) {
		base.WithField("conn", connID).Warn("discarded corrupt packet")
	})
	bus.Subscribe(transport.EventMalformedDiscarded, func(ev transport.Event) {
		base.WithField("conn", connID).Warn("discarded malformed datagram")
	})
	bus.Subscribe(transport.EventFastRetransmit, func(ev transport.Event) {
		log(ev, logrus.Fields{"seq": ev.Seq}, "fast retransmit")
	})
	bus.Subscribe(transport.EventRetransmitTimeout, func(ev transport.Event) {
		log(ev, logrus.Fields{"seq": ev.Seq}, "timeout retransmit")
	})
	bus.Subscribe(transport.EventWindowUpdate, func(ev transport.Event) {
		log(ev, logrus.Fields{"win": ev.Win}, "peer window updated")
	})
}
