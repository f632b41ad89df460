package worker

// EventKind tags the discriminated union of events delivered to a worker,
// per spec.md §4.1's "Events (inputs)" list.
type EventKind int

const (
	EventActivate EventKind = iota
	EventShouldStop
	EventCmdReplyReceived
	EventCmdInfoReceived
	EventCmdConClosed
	EventDataConConnected
	EventDataConClosed
	EventDataConFlushData
	EventDataConListeningForCon
	EventDiskWorkWriteFinished
	EventDelayedAutoRetry
	EventDataConStartTimeout
	EventNoDataTransferTimeout
	EventTargetPathListingFinished
	// EventResumeVerifyFailed: the engine compared the resume-overlap
	// bytes already on disk against the bytes the server sent for the
	// same range and they didn't match (spec.md §4.1's resume-overlap
	// testable property). Always fatal to the item.
	EventResumeVerifyFailed
)

// Event is one input the sockets thread delivers to a worker in strict
// order. Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// EventCmdReplyReceived / EventCmdInfoReceived
	Code int
	Text string

	// EventCmdConClosed
	OSError error

	// EventDataConListeningForCon
	IP       string
	Port     int
	ProxyErr error

	// EventDiskWorkWriteFinished
	DiskWriteOK  bool
	DiskWriteErr error

	// EventDataConFlushData: the engine has already run LooksBinary over
	// the flush buffer before delivering this event, since only it holds
	// the bytes; the worker only decides what AsciiForBinaryPolicy says
	// to do about a positive result.
	AsciiGuardTripped bool
}
