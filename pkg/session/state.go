// Package session ties discovery, ticketing, transport and the transfer
// engine into per-peer state machines for the sending and receiving sides.
package session

import (
    "errors"
    "fmt"

    "go.uber.org/zap"
)

// State of one session, sender or receiver half.
type State int

const (
    Idle State = iota
    Advertising      // sender: ticket exposed on the out-of-band channel
    Scanning         // receiver: collecting candidate devices
    TicketExchanged  // receiver: ticket parsed from a selected device
    Connected        // data-channel session live
    RequestSent      // receiver: waiting for the response
    RequestReceived  // sender: request read from the stream
    ResponseSent     // sender: manifest on the wire, chunks may flow
    ResponseReceived // receiver: manifest known, chunks expected
    Streaming
    Complete
    Failed
)

func (s State) String() string {
    switch s {
    case Idle:
        return "idle"
    case Advertising:
        return "advertising"
    case Scanning:
        return "scanning"
    case TicketExchanged:
        return "ticket-exchanged"
    case Connected:
        return "connected"
    case RequestSent:
        return "request-sent"
    case RequestReceived:
        return "request-received"
    case ResponseSent:
        return "response-sent"
    case ResponseReceived:
        return "response-received"
    case Streaming:
        return "streaming"
    case Complete:
        return "complete"
    case Failed:
        return "failed"
    default:
        return "unknown"
    }
}

// Event is the closed set of inputs that drive a session forward. Everything
// the underlying layers report is mapped onto one of these before it touches
// session state.
type Event int

const (
    EvAdvertiseUp Event = iota
    EvScanDone
    EvTicketParsed
    EvConnEstablished
    EvConnClosed
    EvRequestSent
    EvRequestReceived
    EvResponseSent
    EvResponseReceived
    EvChunkFlow
    EvStreamClosed
    EvTimerFired
    EvError
)

func (e Event) String() string {
    switch e {
    case EvAdvertiseUp:
        return "advertise-up"
    case EvScanDone:
        return "scan-done"
    case EvTicketParsed:
        return "ticket-parsed"
    case EvConnEstablished:
        return "conn-established"
    case EvConnClosed:
        return "conn-closed"
    case EvRequestSent:
        return "request-sent"
    case EvRequestReceived:
        return "request-received"
    case EvResponseSent:
        return "response-sent"
    case EvResponseReceived:
        return "response-received"
    case EvChunkFlow:
        return "chunk-flow"
    case EvStreamClosed:
        return "stream-closed"
    case EvTimerFired:
        return "timer-fired"
    case EvError:
        return "error"
    }
    return "unknown"
}

// ErrBadTransition reports an event that is not legal in the current state.
var ErrBadTransition = errors.New("session: illegal transition")

// machine validates and logs transitions for one session half. Failed is
// reachable from every state; Complete and Failed are terminal.
type machine struct {
    peer  string
    state State
}

func newMachine(peer string) *machine { return &machine{peer: peer, state: Idle} }

// on applies one event, returning the new state.
func (m *machine) on(ev Event) (State, error) {
    next, ok := m.next(ev)
    if !ok {
        prev := m.state
        m.state = Failed
        return Failed, fmt.Errorf("%w: %s in state %s", ErrBadTransition, ev, prev)
    }
    if next != m.state {
        zap.L().Debug("session transition",
            zap.String("peer", m.peer),
            zap.String("from", m.state.String()),
            zap.String("event", ev.String()),
            zap.String("to", next.String()))
    }
    m.state = next
    return next, nil
}

func (m *machine) next(ev Event) (State, bool) {
    // Failure paths are uniform.
    switch ev {
    case EvError, EvConnClosed, EvTimerFired:
        if m.state == Complete {
            return Complete, true
        }
        return Failed, true
    }
    switch m.state {
    case Idle:
        switch ev {
        case EvAdvertiseUp:
            return Advertising, true
        case EvScanDone:
            return Scanning, true
        // inbound sessions skip the advertising step in tests
        case EvConnEstablished:
            return Connected, true
        }
    case Advertising:
        if ev == EvConnEstablished {
            return Connected, true
        }
    case Scanning:
        if ev == EvTicketParsed {
            return TicketExchanged, true
        }
    case TicketExchanged:
        if ev == EvConnEstablished {
            return Connected, true
        }
    case Connected:
        switch ev {
        case EvRequestSent:
            return RequestSent, true
        case EvRequestReceived:
            return RequestReceived, true
        }
    case RequestSent:
        if ev == EvResponseReceived {
            return ResponseReceived, true
        }
    case RequestReceived:
        if ev == EvResponseSent {
            return ResponseSent, true
        }
    case ResponseSent, ResponseReceived:
        if ev == EvChunkFlow {
            return Streaming, true
        }
        if ev == EvStreamClosed {
            return Complete, true
        }
    case Streaming:
        if ev == EvChunkFlow {
            return Streaming, true
        }
        if ev == EvStreamClosed {
            return Complete, true
        }
    }
    return m.state, false
}

// State returns the current state.
func (m *machine) State() State { return m.state }
