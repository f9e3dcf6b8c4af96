package zone

import (
	"context"

	"realm-server/internal/ecs"
	"realm-server/internal/event"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Session states.
const (
	StateJoining  = "joining"
	StateActive   = "active"
	StateLeaving  = "leaving"
	StateDetached = "detached"
)

const (
	eventActivate = "activate"
	eventLeave    = "leave"
	eventDetach   = "detach"
	eventAbort    = "abort"
)

// Sink receives the frames of one session. Send must not block; it reports
// false when the frame was dropped.
type Sink interface {
	Send(frame *event.Frame) bool
}

type session struct {
	id          uuid.UUID
	seq         uint64
	username    string
	characterID int64
	name        string

	// Owned by the tick goroutine.
	entity ecs.Entity
	sink   Sink

	state *fsm.FSM
}

func newSession(id uuid.UUID, seq uint64, username string, sink Sink) *session {
	return &session{
		id:       id,
		seq:      seq,
		username: username,
		sink:     sink,
		state: fsm.NewFSM(
			StateJoining,
			fsm.Events{
				{Name: eventActivate, Src: []string{StateJoining}, Dst: StateActive},
				{Name: eventLeave, Src: []string{StateActive}, Dst: StateLeaving},
				{Name: eventDetach, Src: []string{StateLeaving}, Dst: StateDetached},
				{Name: eventAbort, Src: []string{StateJoining}, Dst: StateDetached},
			},
			fsm.Callbacks{},
		),
	}
}

func (s *session) transition(name string) error {
	return s.state.Event(context.Background(), name)
}

func (s *session) is(state string) bool {
	return s.state.Is(state)
}
