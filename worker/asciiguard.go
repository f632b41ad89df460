package worker

// AsciiForBinaryPolicy is the configured response when a file believed to
// be binary is detected arriving under ASCII transfer mode, per spec.md
// §4.1's ASCII-binary guard.
type AsciiForBinaryPolicy int

const (
	AsciiForBinaryIgnore AsciiForBinaryPolicy = iota
	AsciiForBinaryAskUser
	AsciiForBinaryRetryBinary
	AsciiForBinarySkip
)

// AsciiForBinaryAction is what the worker should actually do once the
// guard has fired, resolved from the configured policy.
type AsciiForBinaryAction int

const (
	ActionContinue AsciiForBinaryAction = iota
	ActionAskUserAboutBinary
	ActionRetryInBinary
	ActionSkipItem
)

// LooksBinary scans buf the way the teacher's asciiConverter implicitly
// assumes text never contains: it is inverted from a CRLF/LF transcoder
// into a detector, since this engine receives (rather than emits) the
// ASCII stream and must decide whether the server actually sent binary
// data under a TYPE A negotiation. A NUL byte is conclusive (text streams
// never legitimately contain one); short of that, a buffer is flagged if
// more than 30% of its bytes fall outside the printable-ASCII-plus-
// whitespace range.
func LooksBinary(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	nonText := 0

	for _, b := range buf {
		if b == 0 {
			return true
		}

		if isASCIIText(b) {
			continue
		}

		nonText++
	}

	return float64(nonText)/float64(len(buf)) > 0.30
}

func isASCIIText(b byte) bool {
	switch b {
	case '\n', '\r', '\t':
		return true
	}

	return b >= 0x20 && b < 0x7f
}

// DecideAsciiForBinaryAction resolves the configured policy into a
// concrete worker action once LooksBinary has fired, per spec.md §4.1:
// "the worker either asks the user, retries in binary, or skips, per
// policy" (Ignore means the guard never fires in the first place, so it
// has no corresponding action here).
func DecideAsciiForBinaryAction(policy AsciiForBinaryPolicy) AsciiForBinaryAction {
	switch policy {
	case AsciiForBinaryAskUser:
		return ActionAskUserAboutBinary
	case AsciiForBinaryRetryBinary:
		return ActionRetryInBinary
	case AsciiForBinarySkip:
		return ActionSkipItem
	default:
		return ActionContinue
	}
}
