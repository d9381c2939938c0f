package elfo

import (
	"errors"
	"fmt"
)

// ErrMailboxClosed indicates an operation failed because the target
// mailbox has been closed, either because the actor terminated or because
// the owning Group is shutting down.
var ErrMailboxClosed = errors.New("elfo: mailbox closed")

// ErrMailboxFull indicates a TrySend failed because the mailbox's bounded
// capacity is exhausted. Send (the blocking variant) never returns this;
// it waits for room instead.
var ErrMailboxFull = errors.New("elfo: mailbox full")

// ErrNoDestinations indicates a Router produced RouteDiscard because no
// child existed to address, e.g. an empty pool with no wildcard route.
var ErrNoDestinations = errors.New("elfo: router has no destinations")

// ErrRequestIgnored indicates a request's Token was dropped (explicitly via
// Discard, or via the finalizer backstop) without ever being fulfilled.
var ErrRequestIgnored = errors.New("elfo: request ignored")

// ErrActorTerminated indicates an operation targeted an actor that has
// already reached StatusTerminated or no longer accepts messages.
var ErrActorTerminated = errors.New("elfo: actor terminated")

// ErrUnknownAddr indicates a SendTo or request referenced an Addr that no
// longer resolves to a live actor (stale generation or never existed). A
// RequestTable await for a correlation id it does not hold also returns it.
var ErrUnknownAddr = errors.New("elfo: unknown address")

// ClosedError wraps a send that failed because the mailbox was closed. It
// carries the envelope that could not be delivered so callers can route it
// to dead letters themselves if Group didn't already do so.
type ClosedError struct {
	Envelope Envelope
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("elfo: send of %s failed: %v", e.Envelope.Message.MessageType(), ErrMailboxClosed)
}

func (e *ClosedError) Unwrap() error { return ErrMailboxClosed }

// FullError wraps a TrySend that failed because the mailbox was at
// capacity.
type FullError struct {
	Envelope Envelope
}

func (e *FullError) Error() string {
	return fmt.Sprintf("elfo: try-send of %s failed: %v", e.Envelope.Message.MessageType(), ErrMailboxFull)
}

func (e *FullError) Unwrap() error { return ErrMailboxFull }

// PanicError wraps a recovered panic from an actor's exec body. The
// supervisor logs it and, per the restart policy, respawns the actor.
type PanicError struct {
	Addr  Addr
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("elfo: actor %s panicked: %v", e.Addr, e.Value)
}
