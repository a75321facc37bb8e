package player

type (
	// Broker carries messages between the control threads and the audio
	// thread. Every direction is a buffered channel; senders use TrySend and
	// never block, so a stalled audio thread cannot deadlock the callers and
	// vice versa.
	//
	// ToPlayer carries transport events, slot commands, live notes and engine
	// changes, applied at the start of the next block in arrival order.
	// Alerts carries problems noticed on the audio thread to whoever logs
	// them, see LogAlerts.
	Broker struct {
		ToPlayer chan any
		Alerts   chan Alert
	}
)

const (
	toPlayerCapacity = 1024
	alertsCapacity   = 64
)

func NewBroker() *Broker {
	return &Broker{
		ToPlayer: make(chan any, toPlayerCapacity),
		Alerts:   make(chan Alert, alertsCapacity),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
