package elfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestTableFulfillOnce(t *testing.T) {
	rt := newRequestTable()
	_, tok := rt.allocate(NullAddr)

	require.True(t, tok.fulfill(okResult("first")))
	require.False(t, tok.fulfill(okResult("second")))
}

func TestRequestTableAwaitReturnsFulfilledValue(t *testing.T) {
	rt := newRequestTable()
	id, tok := rt.allocate(NullAddr)

	go func() {
		time.Sleep(5 * time.Millisecond)
		tok.fulfill(okResult("hello"))
	}()

	res := rt.await(context.Background(), id)
	val, err := res.Unpack()
	require.NoError(t, err)
	require.Equal(t, "hello", val)
}

func TestTokenCallerReturnsOwningAddr(t *testing.T) {
	rt := newRequestTable()
	owner := newAddr(1, 0, 9)
	_, tok := rt.allocate(owner)

	require.Equal(t, owner, tok.Caller())
}

func TestTokenDiscardMarksIgnored(t *testing.T) {
	rt := newRequestTable()
	id, tok := rt.allocate(NullAddr)

	tok.Discard()

	res := rt.await(context.Background(), id)
	_, err := res.Unpack()
	require.ErrorIs(t, err, ErrRequestIgnored)
}

func TestTokenDiscardIsIdempotent(t *testing.T) {
	rt := newRequestTable()
	_, tok := rt.allocate(NullAddr)

	tok.Discard()
	tok.Discard() // must not panic or double-send on the result channel

	require.True(t, tok.used.Load())
}

func TestRequestTableAwaitUnknownIDErrors(t *testing.T) {
	rt := newRequestTable()
	res := rt.await(context.Background(), CorrelationID(999))
	_, err := res.Unpack()
	require.Error(t, err)
}

func TestRequestTableAwaitRespectsContextCancellation(t *testing.T) {
	rt := newRequestTable()
	id, _ := rt.allocate(NullAddr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := rt.await(ctx, id)
	_, err := res.Unpack()
	require.Error(t, err)
}
