package elfo

import (
	"context"
	"reflect"
)

// Source is an auxiliary stream of envelopes an actor wants to consume
// alongside its mailbox, e.g. a Timer or Interval. It is the Go-idiomatic
// substitute for elfo-core's poll-based Source trait (Future::poll +
// Waker): rather than a poll method a source owns a goroutine that pushes
// onto a channel, and a closed channel signals "no more values", the
// equivalent of a poll returning Ready(None).
type Source interface {
	// Chan returns the channel this source delivers envelopes on. It
	// must always return the same channel for the lifetime of the
	// source.
	Chan() <-chan Envelope

	// Close stops the source's producer goroutine, if any. Idempotent.
	Close()
}

// combinedReceiver fans a mailbox and zero or more Sources into a single
// consumption point. Grounded on markInTheAbyss-go-actor's FanOut (fan
// multiple producers into one receive channel), generalized from
// same-typed mailboxes to a mailbox plus heterogeneous Sources; built on
// reflect.Select since the source count is dynamic and Go has no
// variadic select statement.
type combinedReceiver struct {
	mailbox *Mailbox
	sources []Source
	start   int
}

// newCombinedReceiver builds a receiver over mailbox and extra sources.
func newCombinedReceiver(mailbox *Mailbox, sources []Source) *combinedReceiver {
	return &combinedReceiver{mailbox: mailbox, sources: sources}
}

// recv blocks until an envelope is available from the mailbox or any
// source, or ctx is cancelled. The starting index among sources rotates
// each time a source delivers so that, under reflect.Select's own uniform-random tie
// break, no single source is structurally favored over a long run.
func (c *combinedReceiver) recv(ctx context.Context) (Envelope, bool) {
	if len(c.sources) == 0 {
		return c.mailbox.Recv(ctx)
	}

	n := len(c.sources)
	cases := make([]reflect.SelectCase, 0, n+2)
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(c.mailbox.ch),
	})
	for i := 0; i < n; i++ {
		idx := (c.start + i) % n
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.sources[idx].Chan()),
		})
	}

	for {
		chosen, value, ok := reflect.Select(cases)
		switch {
		case chosen == 0:
			return Envelope{}, false
		case chosen == 1:
			if !ok {
				return Envelope{}, false
			}
			return value.Interface().(Envelope), true
		default:
			if !ok {
				// This source closed; drop its case so future
				// selects don't spin on it.
				cases = append(cases[:chosen], cases[chosen+1:]...)
				if len(cases) == 2 {
					return c.mailbox.Recv(ctx)
				}
				continue
			}
			c.start = (c.start + 1) % n
			return value.Interface().(Envelope), true
		}
	}
}
