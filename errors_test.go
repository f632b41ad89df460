package ftpclientcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "connection-reset", KindConnectionReset.String())
	assert.Equal(t, "unknown", ErrorKind(999).String())
}

func TestKindOfWalksWrapChain(t *testing.T) {
	base := NewEngineError(KindTimeout, "no-data-transfer timeout", nil)
	wrapped := fmt.Errorf("worker: %w", base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestIsRetryableNow(t *testing.T) {
	assert.True(t, IsRetryableNow(NewEngineError(KindCanRetry, "ssl retry", nil)))
	assert.True(t, IsRetryableNow(NewEngineError(KindLowMemory, "disk buffer exhausted", nil)))
	assert.False(t, IsRetryableNow(NewEngineError(KindHostMissing, "no host", nil)))
}

func TestIsFatalToSession(t *testing.T) {
	assert.True(t, IsFatalToSession(NewEngineError(KindHostMissing, "no host", nil)))
	assert.True(t, IsFatalToSession(NewEngineError(KindInvalidPort, "bad port", nil)))
	assert.False(t, IsFatalToSession(NewEngineError(KindTimeout, "slow", nil)))
}

func TestEngineErrorUnwrap(t *testing.T) {
	cause := errors.New("econnreset")
	wrapped := NewEngineError(KindConnectionReset, "data connection", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection-reset")
	assert.Contains(t, wrapped.Error(), "econnreset")
}
