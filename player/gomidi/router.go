// Package gomidi feeds MIDI input into a player: the system real-time
// subset drives the clock synchronizer, and channel voice notes and
// controllers are played live on the program matching their channel.
package gomidi

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/groovebox/clock"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Target receives decoded MIDI input. *player.Player implements it.
	Target interface {
		ProcessTransportEvent(e clock.Event) error
		NoteOn(program int, channel, note, velocity byte) error
		NoteOff(program int, channel, note byte) error
		ControlChange(program int, controller, value byte) error
	}

	// Router decodes messages from one input device and forwards them to a
	// Target. Its Handle method has the signature expected by midi.ListenTo.
	Router struct {
		target Target
		device string
		log    logrus.FieldLogger
		now    func() time.Time
	}
)

func NewRouter(target Target, device string, log logrus.FieldLogger) *Router {
	return &Router{target: target, device: device, log: log, now: time.Now}
}

// Handle is called by the MIDI driver for every incoming message. Transport
// messages are stamped with the arrival time for tempo estimation.
func (r *Router) Handle(msg midi.Message, timestampms int32) {
	if err := r.Dispatch(msg, r.now()); err != nil {
		r.log.WithFields(logrus.Fields{"device": r.device, "message": msg.String()}).WithError(err).Warn("MIDI message dropped")
	}
}

// Dispatch decodes one message and forwards it. Messages outside the
// supported subset are ignored.
func (r *Router) Dispatch(msg midi.Message, now time.Time) error {
	switch msg.Type() {
	case midi.TimingClockMsg:
		return r.transport(clock.ClockPulse, 0, now)
	case midi.StartMsg:
		return r.transport(clock.Start, 0, now)
	case midi.StopMsg:
		return r.transport(clock.Stop, 0, now)
	case midi.ContinueMsg:
		return r.transport(clock.Continue, 0, now)
	}
	var spp uint16
	var channel, key, velocity, controller, value uint8
	switch {
	case msg.GetSPP(&spp):
		return r.transport(clock.SongPosition, int(spp), now)
	case msg.GetNoteStart(&channel, &key, &velocity):
		return r.target.NoteOn(int(channel), channel, key, velocity)
	case msg.GetNoteEnd(&channel, &key):
		return r.target.NoteOff(int(channel), channel, key)
	case msg.GetControlChange(&channel, &controller, &value):
		return r.target.ControlChange(int(channel), controller, value)
	}
	return nil
}

func (r *Router) transport(kind clock.EventKind, value int, now time.Time) error {
	return r.target.ProcessTransportEvent(clock.Event{Kind: kind, Value: value, Time: now})
}
