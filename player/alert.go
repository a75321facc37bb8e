package player

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	// Alert is a problem noticed on the audio thread. The audio thread never
	// logs itself; it queues alerts, and LogAlerts writes them out. Errors
	// are queued as they are and only formatted by LogAlerts.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
		Err      error
		Slot     int // slot Err came from, -1 if none
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func (p AlertPriority) String() string {
	switch p {
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "info"
}

// LogAlerts writes alerts to log until ctx is done or alerts is closed.
func LogAlerts(ctx context.Context, alerts <-chan Alert, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			entry := log.WithField("alert", a.Name)
			msg := a.Message
			if a.Err != nil {
				err := a.Err
				if a.Slot >= 0 {
					err = errors.Wrapf(err, "slot %d", a.Slot)
					entry = entry.WithField("slot", a.Slot)
				}
				if msg == "" {
					msg = err.Error()
				}
			}
			switch a.Priority {
			case Error:
				entry.Error(msg)
			case Warning:
				entry.Warn(msg)
			default:
				entry.Info(msg)
			}
		}
	}
}
