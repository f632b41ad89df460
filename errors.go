// Package ftpclientcore drives FTP/FTPS sessions: control connection
// sequencing, data connection transfers, listing parsing and caching, on
// behalf of a file-manager style host.
package ftpclientcore

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error into one of the taxonomy buckets used to
// drive a retry or surfacing decision, independently of the concrete Go
// error type that carries it.
type ErrorKind int

// Error kinds, grouped as in the taxonomy.
const (
	KindUnknown ErrorKind = iota

	// Network/OS
	KindConnectionRefused
	KindConnectionReset
	KindTimeout
	KindDNSFailure
	KindBindFailed
	KindSendFailed
	KindRecvFailed

	// Protocol
	KindBadReply
	KindUnexpectedCode
	KindRestNotSupported
	KindSizeNotSupported

	// TLS
	KindHandshakeFailed
	KindUnverifiedCert
	KindCertMismatch
	KindEncryptFailed
	KindCanRetry
	KindDoNotRetry

	// Data integrity
	KindASCIIForBinaryFile
	KindResumeTestFailed
	KindIncompleteDownload
	KindDecompressError

	// Local
	KindLowMemory
	KindDiskWriteError
	KindLocalFileLocked
	KindSrcFileInUse

	// User
	KindCancelled
	KindSkippedByPolicy
	KindUserInputNeeded

	// Logic
	KindInvalidPath
	KindHomeDirNotDefined
	KindInvalidPort
	KindHostMissing
)

// String renders the kind the way it is named in the taxonomy, for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindConnectionRefused:
		return "connection-refused"
	case KindConnectionReset:
		return "connection-reset"
	case KindTimeout:
		return "timeout"
	case KindDNSFailure:
		return "dns-failure"
	case KindBindFailed:
		return "bind-failed"
	case KindSendFailed:
		return "send-failed"
	case KindRecvFailed:
		return "recv-failed"
	case KindBadReply:
		return "bad-reply"
	case KindUnexpectedCode:
		return "unexpected-code"
	case KindRestNotSupported:
		return "rest-not-supported"
	case KindSizeNotSupported:
		return "size-not-supported"
	case KindHandshakeFailed:
		return "handshake-failed"
	case KindUnverifiedCert:
		return "unverified-cert"
	case KindCertMismatch:
		return "cert-mismatch"
	case KindEncryptFailed:
		return "encrypt-failed"
	case KindCanRetry:
		return "can-retry"
	case KindDoNotRetry:
		return "do-not-retry"
	case KindASCIIForBinaryFile:
		return "ascii-for-binary-file"
	case KindResumeTestFailed:
		return "resume-test-failed"
	case KindIncompleteDownload:
		return "incomplete-download"
	case KindDecompressError:
		return "decompress-error"
	case KindLowMemory:
		return "low-memory"
	case KindDiskWriteError:
		return "disk-write-error"
	case KindLocalFileLocked:
		return "local-file-locked"
	case KindSrcFileInUse:
		return "src-file-in-use"
	case KindCancelled:
		return "cancelled"
	case KindSkippedByPolicy:
		return "skipped-by-policy"
	case KindUserInputNeeded:
		return "user-input-needed"
	case KindInvalidPath:
		return "invalid-path"
	case KindHomeDirNotDefined:
		return "home-dir-not-defined"
	case KindInvalidPort:
		return "invalid-port"
	case KindHostMissing:
		return "host-missing"
	default:
		return "unknown"
	}
}

// EngineError is the common shape for every error this engine returns: a
// short description, the classification used for retry decisions, and the
// wrapped cause if any.
type EngineError struct {
	str  string
	kind ErrorKind
	err  error
}

// NewEngineError builds an EngineError of the given kind.
func NewEngineError(kind ErrorKind, str string, err error) EngineError {
	return EngineError{str: str, kind: kind, err: err}
}

func (e EngineError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.str, e.err)
	}

	return fmt.Sprintf("%s: %s", e.kind, e.str)
}

// Unwrap exposes the wrapped cause, if any.
func (e EngineError) Unwrap() error {
	return e.err
}

// Kind returns the error's classification.
func (e EngineError) Kind() ErrorKind {
	return e.kind
}

// KindOf extracts the ErrorKind carried by err, walking the Unwrap chain.
// Errors that don't carry an EngineError classify as KindUnknown.
func KindOf(err error) ErrorKind {
	var ee EngineError
	if errors.As(err, &ee) {
		return ee.kind
	}

	return KindUnknown
}

// IsRetryableNow reports whether the taxonomy classifies err as something
// the worker should retry without user intervention, per spec.md §7's
// propagation policy.
func IsRetryableNow(err error) bool {
	switch KindOf(err) {
	case KindLowMemory, KindCanRetry, KindTimeout, KindConnectionReset:
		return true
	default:
		return false
	}
}

// IsFatalToSession reports whether err should make the worker release its
// control connection and stop looking for new work on this session.
func IsFatalToSession(err error) bool {
	switch KindOf(err) {
	case KindHostMissing, KindInvalidPort, KindDoNotRetry:
		return true
	default:
		return false
	}
}
