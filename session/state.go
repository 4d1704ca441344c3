// Package session implements the per-connection state machine (C2):
// the handshake/request/sleep cycle of spec.md §4.2.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import "strconv"

// State is a closed enum of session states (spec.md §4.2). Modeled as an
// explicit int type with a step(State, Event) transition function, never goto, following the same
// state-by-return-value discipline as xact/xreg's Renewable.
type State int

const (
	Closed State = iota
	Connecting
	Authenticating
	Idle
	InRequest
	AwaitingHeader
	StreamingMeta
	StreamingData
	StreamingStructures
	PostRequest
	Sleeping
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Connecting:
		return "Connecting"
	case Authenticating:
		return "Authenticating"
	case Idle:
		return "Idle"
	case InRequest:
		return "InRequest"
	case AwaitingHeader:
		return "AwaitingHeader"
	case StreamingMeta:
		return "StreamingMeta"
	case StreamingData:
		return "StreamingData"
	case StreamingStructures:
		return "StreamingStructures"
	case PostRequest:
		return "PostRequest"
	case Sleeping:
		return "Sleeping"
	default:
		return "Unknown"
	}
}

// Event drives transitions via step.
type Event int

const (
	EvDial Event = iota
	EvHandshakeOK
	EvAuthOK
	EvRequestSent
	EvHeaderRead
	EvMetaDone
	EvDataDone
	EvStructuresDone
	EvNoStructures
	EvSleep
	EvClosedown
	EvDrop
)

// Step exposes the pure transition function to other packages (the
// server-side connection driver in package server reuses the exact same
// table rather than re-deriving it, since spec.md's states describe one
// connection, not one actor).
func Step(s State, e Event) (State, error) { return step(s, e) }

// step is the pure transition function; Machine wraps it with the
// actual I/O for each edge.
func step(s State, e Event) (State, error) {
	switch s {
	case Closed:
		if e == EvDial {
			return Connecting, nil
		}
	case Connecting:
		switch e {
		case EvHandshakeOK:
			return Authenticating, nil
		case EvDrop:
			return Closed, nil
		}
	case Authenticating:
		switch e {
		case EvAuthOK:
			return Idle, nil
		case EvDrop:
			return Closed, nil
		}
	case Idle:
		switch e {
		case EvRequestSent:
			return InRequest, nil
		case EvDrop:
			return Closed, nil
		}
	case InRequest:
		if e == EvHeaderRead {
			return AwaitingHeader, nil
		}
	case AwaitingHeader:
		if e == EvMetaDone {
			return StreamingMeta, nil
		}
	case StreamingMeta:
		if e == EvDataDone {
			return StreamingData, nil
		}
	case StreamingData:
		switch e {
		case EvStructuresDone:
			return StreamingStructures, nil
		case EvNoStructures:
			return PostRequest, nil
		}
	case StreamingStructures:
		if e == EvDataDone {
			return PostRequest, nil
		}
	case PostRequest:
		switch e {
		case EvSleep:
			return Sleeping, nil
		case EvClosedown:
			return Closed, nil
		}
	case Sleeping:
		switch e {
		case EvRequestSent:
			return InRequest, nil
		case EvDrop:
			return Closed, nil
		}
	}
	return s, &TransitionError{From: s, Event: e}
}

// TransitionError reports an event that has no defined edge from the
// current state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return "session: no transition for event " + strconv.Itoa(int(e.Event)) + " from state " + e.From.String()
}
