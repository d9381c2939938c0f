package elfo

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout internal/elfo. It
// defaults to a no-op logger so importing this package without calling
// UseLogger never produces output, matching the teacher's
// (Roasbeef-substrate) btcsuite-style package-logger convention.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by actors, groups, and the
// topology. Call this once during process startup, before any Topology is
// started.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all library log output by installing a no-op
// logger. Should also be called before any Topology is started.
func DisableLog() {
	log = btclog.Disabled
}
