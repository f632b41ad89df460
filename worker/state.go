// Package worker implements the core state machine (spec.md §4.1): a
// single-threaded actor driven by events delivered in a strict order by
// the sockets thread. It drives one control connection, at most one data
// connection and at most one in-flight disk job through the Actions it
// returns (it holds no socket itself), and keeps a reference to the
// current queue item, a log-uid, and connect-attempt counters. It is
// grounded on the teacher's clientHandler (client_handler.go) and its
// file-transfer command handlers (handle_files.go's transferFile/
// doFileTransfer/handleREST), inverted the same way dataconn is: there
// the teacher answered a client's RETR/STOR; here this engine issues
// them and drives its own reply-reading state machine.
package worker

// State is the worker's current sub-state within one queue item attempt,
// per spec.md §4.1's "representative subset for file copy/move".
type State int

const (
	StartWork State = iota
	WaitForPasvRes
	OpenActDataCon
	WaitForListen
	WaitForPortRes
	SetType
	ResumeFile
	WaitForResumeRes
	ResumeError
	SendRetrOrStor
	ActivateDataCon
	WaitForTransferCmdRes
	WaitForDataConFinish
	FinishFlushData
	ProcessTransferCmdRes
	TransferFinished
	MoveWaitForDeleRes
	Done

	DelayedAutoRetry
	DrainThenQuit
	Failed
	Skipped
	UserInputNeeded
)

func (s State) String() string {
	switch s {
	case WaitForPasvRes:
		return "wait-for-pasv-res"
	case OpenActDataCon:
		return "open-act-data-con"
	case WaitForListen:
		return "wait-for-listen"
	case WaitForPortRes:
		return "wait-for-port-res"
	case SetType:
		return "set-type"
	case ResumeFile:
		return "resume-file"
	case WaitForResumeRes:
		return "wait-for-resume-res"
	case ResumeError:
		return "resume-error"
	case SendRetrOrStor:
		return "send-retr"
	case ActivateDataCon:
		return "activate-data-con"
	case WaitForTransferCmdRes:
		return "wait-for-retr-res"
	case WaitForDataConFinish:
		return "wait-for-data-con-finish"
	case FinishFlushData:
		return "finish-flush-data"
	case ProcessTransferCmdRes:
		return "process-retr-res"
	case TransferFinished:
		return "transfer-finished"
	case MoveWaitForDeleRes:
		return "move-wait-for-dele-res"
	case Done:
		return "done"
	case DelayedAutoRetry:
		return "delayed-auto-retry"
	case DrainThenQuit:
		return "drain-then-quit"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case UserInputNeeded:
		return "user-input-needed"
	default:
		return "start-work"
	}
}
