package worker

import "time"

// DefaultWatchdogInterval is how often spec.md §4.1 says the no-data-
// transfer watchdog timer fires ("default 10 s").
const DefaultWatchdogInterval = 10 * time.Second

// DefaultNoDataTransferThreshold is the default idle threshold spec.md
// §4.1 names ("default 30 s").
const DefaultNoDataTransferThreshold = 30 * time.Second

// CheckNoDataTransfer reports whether the watchdog should fire: the data
// socket is still open and now-lastActivity exceeds threshold. Firing
// means the worker synthesises a close with a connection-reset error,
// forcing the usual close-path to break a half-dead TCP session.
func CheckNoDataTransfer(dataSocketOpen bool, lastActivity, now time.Time, threshold time.Duration) bool {
	if !dataSocketOpen {
		return false
	}

	return now.Sub(lastActivity) > threshold
}
