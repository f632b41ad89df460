package log

import (
	"os"
	"testing"

	gklog "github.com/go-kit/kit/log"
)

func getLogger() Logger {
	return NewGKLogger(gklog.NewLogfmtLogger(gklog.NewSyncWriter(os.Stdout))).With(
		"ts", GKDefaultTimestampUTC,
		"caller", GKDefaultCaller,
	)
}

func TestLogSimple(t *testing.T) {
	logger := getLogger()
	logger.Info("hello")
	logger.Debug("debug-event", "key", "value")
	logger.Warn("warn-event")
	logger.Error("error-event", nil)
}

func TestNopLogger(t *testing.T) {
	logger := NewNopGKLogger()
	logger.Info("swallowed")
}
