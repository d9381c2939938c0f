package elfo

import (
	"os"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	DisableLog()
	os.Exit(goleak.VerifyTestMain(m,
		// time.AfterFunc/time.Ticker internal timer goroutines are not
		// actor-owned leaks; they're reclaimed by the runtime's timer
		// heap, not by goroutine exit, and goleak can see them as
		// transiently running during timer teardown races.
		goleak.IgnoreTopFunction("time.Sleep"),
	))
}
