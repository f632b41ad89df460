package worker

import (
	"fmt"
	"time"

	"github.com/fclairamb/ftpclientcore/log"
	"github.com/fclairamb/ftpclientcore/queue"
)

// Mode is which data-connection establishment style this attempt uses.
type Mode int

const (
	ModePassive Mode = iota
	ModeActive
)

// Params carries the per-item settings a Worker needs to drive one
// attempt: resume policy, ASCII handling, preferred data-connection mode.
type Params struct {
	Mode              Mode
	ResumeMode        ResumeMode
	ResumeMinFileSize int64
	ResumeOverlap     int64
	AsciiPolicy       AsciiForBinaryPolicy
	MoveAfterSuccess  bool
	CommandTimeout    time.Duration

	// ListCommand is the directory-listing command an explore item sends
	// instead of RETR/STOR (spec.md §4.1's listing fetch, settings.go's
	// ListCommand setting). Defaults to "LIST" when empty.
	ListCommand string

	// NoDataTransferTimeout overrides DefaultNoDataTransferThreshold for
	// the no-data-transfer watchdog (spec.md §4.1/§8 scenario 4,
	// settings.go's NoDataTransferTimeout setting). Zero means use the
	// default.
	NoDataTransferTimeout time.Duration
}

// Worker is a single-threaded actor driving one queue item through the
// state machine of spec.md §4.1. It owns no socket directly; Handle
// returns the Actions the engine must perform, and the engine feeds
// observed outcomes back in as further Events.
type Worker struct {
	LogUID string
	logger log.Logger

	Item   *queue.Item
	State  State
	params Params

	connectAttempts int
	openedFileSize  int64

	restOffset      int64
	restSucceeded   bool
	directionStor   bool // true for STOR/APPE, false for RETR

	cmdReplyCode     *int
	dataConClosed    bool
	diskFlushPending bool
	dataDropped      bool // data connection dropped mid-transfer after a 2xx

	quitSent bool
}

// New creates a Worker for item, in its start-work state.
func New(item *queue.Item, logUID string, logger log.Logger, params Params) *Worker {
	return &Worker{
		Item:   item,
		State:  StartWork,
		LogUID: logUID,
		logger: logger,
		params: params,
	}
}

func (w *Worker) log(event string, keyvals ...interface{}) {
	if w.logger == nil {
		return
	}

	w.logger.Debug(event, append([]interface{}{"logUid", w.LogUID, "state", w.State.String()}, keyvals...)...)
}

// Handle processes one event and returns the actions the engine must
// perform as a result.
func (w *Worker) Handle(ev Event) []Action {
	switch ev.Kind {
	case EventShouldStop:
		return w.handleShouldStop()
	case EventCmdConClosed:
		return w.handleCmdConClosed(ev)
	case EventActivate:
		return w.handleActivate()
	case EventCmdReplyReceived:
		return w.handleCmdReply(ev)
	case EventDataConListeningForCon:
		return w.handleDataConListening(ev)
	case EventDataConConnected:
		return w.handleDataConConnected()
	case EventDataConClosed:
		return w.handleDataConClosed()
	case EventDataConFlushData:
		return w.handleDataConFlushData(ev)
	case EventDiskWorkWriteFinished:
		return w.handleDiskWorkFinished(ev)
	case EventNoDataTransferTimeout:
		return w.handleNoDataTransferTimeout()
	case EventDelayedAutoRetry:
		return w.handleDelayedAutoRetry()
	case EventResumeVerifyFailed:
		return w.failItem("resume-test-failed: local and remote overlap bytes differ")
	default:
		return nil
	}
}

func (w *Worker) handleActivate() []Action {
	if w.State != StartWork {
		return nil
	}

	w.directionStor = queue.Describe(w.Item.Type).Upload

	w.Item.SetState(queue.Processing)

	if w.params.Mode == ModeActive {
		w.State = OpenActDataCon

		return []Action{{Kind: ActionOpenActiveListener}}
	}

	w.State = WaitForPasvRes

	return []Action{{Kind: ActionSendCommand, Command: "PASV"}}
}

// handleDataConListening is the active-mode equivalent of receiving the
// PASV reply: the engine reports the local listener's advertised address
// once it is open, and the worker sends PORT.
func (w *Worker) handleDataConListening(ev Event) []Action {
	if w.State != OpenActDataCon && w.State != WaitForListen {
		return nil
	}

	if ev.ProxyErr != nil {
		return w.failItem(fmt.Sprintf("proxy error opening active listener: %v", ev.ProxyErr))
	}

	w.State = WaitForPortRes

	return []Action{{Kind: ActionSendCommand, Command: "PORT", Arg: fmt.Sprintf("%s:%d", ev.IP, ev.Port)}}
}

func (w *Worker) handleCmdReply(ev Event) []Action {
	switch w.State {
	case WaitForPasvRes:
		return w.onPasvReply(ev)
	case WaitForPortRes:
		return w.onSimpleOKReply(ev, SetType, "TYPE", w.typeArg())
	case SetType:
		return w.onTypeReply(ev)
	case WaitForResumeRes:
		return w.onRestReply(ev)
	case WaitForTransferCmdRes, WaitForDataConFinish:
		return w.onTransferCmdReply(ev)
	case MoveWaitForDeleRes:
		return w.onDeleReply(ev)
	default:
		return nil
	}
}

func (w *Worker) typeArg() string {
	if w.Item.ASCIITransfer {
		return "A"
	}

	return "I"
}

func (w *Worker) onPasvReply(ev Event) []Action {
	if ev.Code != 227 {
		return w.classifyAndAct(ev.Code, false)
	}

	w.State = SetType

	return []Action{
		{Kind: ActionOpenPassiveDataConn, IP: ev.IP, Port: ev.Port},
		{Kind: ActionSendCommand, Command: "TYPE", Arg: w.typeArg()},
	}
}

// onSimpleOKReply advances to next on any 2xx, otherwise classifies the
// failure as a transfer-setup error (permanent: PORT/TYPE rejection is a
// protocol mismatch, not something worth auto-retrying).
func (w *Worker) onSimpleOKReply(ev Event, next State, cmd, arg string) []Action {
	if ev.Code < 200 || ev.Code >= 300 {
		return w.failItem(fmt.Sprintf("%s rejected: %d", cmd, ev.Code))
	}

	w.State = next

	if cmd == "" {
		return nil
	}

	return []Action{{Kind: ActionSendCommand, Command: cmd, Arg: arg}}
}

func (w *Worker) onTypeReply(ev Event) []Action {
	if ev.Code < 200 || ev.Code >= 300 {
		return w.failItem(fmt.Sprintf("TYPE rejected: %d", ev.Code))
	}

	w.State = ResumeFile

	return w.beginResume()
}

func (w *Worker) beginResume() []Action {
	// Explore items (directory listings) have no resumable byte stream —
	// REST negotiation doesn't apply, so skip straight to the transfer
	// command.
	if queue.Describe(w.Item.Type).Explore {
		return w.sendTransferCommand()
	}

	decision, offset := NegotiateResume(w.params.ResumeMode, w.openedFileSize, w.params.ResumeMinFileSize, w.params.ResumeOverlap)

	if decision != DecisionSendRest {
		return w.sendTransferCommand()
	}

	w.restOffset = offset
	w.State = WaitForResumeRes

	return []Action{{Kind: ActionSendCommand, Command: "REST", Arg: fmt.Sprintf("%d", offset)}}
}

func (w *Worker) onRestReply(ev Event) []Action {
	if ev.Code >= 300 && ev.Code < 400 {
		w.restSucceeded = true
		return w.sendTransferCommand()
	}

	w.State = ResumeError

	decision := HandleRestFailure(w.params.ResumeMode)
	if decision == DecisionRestFailedFatal {
		return w.failItem("resume required but REST failed")
	}

	w.restOffset = 0

	return w.sendTransferCommand()
}

func (w *Worker) sendTransferCommand() []Action {
	cmd := "RETR"
	arg := w.Item.SourceName

	switch {
	case queue.Describe(w.Item.Type).Explore:
		cmd = w.listCommand()
	case w.directionStor:
		cmd = "STOR"
		arg = w.Item.TargetName
	}

	w.State = ActivateDataCon

	actions := []Action{
		{Kind: ActionSendCommand, Command: cmd, Arg: arg},
		{Kind: ActionActivateDataConn},
	}

	w.State = WaitForTransferCmdRes

	return actions
}

// listCommand returns the configured directory-listing command, per
// settings.go's ListCommand setting, defaulting to "LIST" per spec.md
// §4.1 when unconfigured.
func (w *Worker) listCommand() string {
	if w.params.ListCommand == "" {
		return "LIST"
	}

	return w.params.ListCommand
}

// NoDataTransferTimeout returns the configured no-data-transfer watchdog
// threshold (spec.md §4.1/§8 scenario 4), defaulting to
// DefaultNoDataTransferThreshold when unconfigured.
func (w *Worker) NoDataTransferTimeout() time.Duration {
	if w.params.NoDataTransferTimeout <= 0 {
		return DefaultNoDataTransferThreshold
	}

	return w.params.NoDataTransferTimeout
}

// onTransferCmdReply records the command reply but, per spec.md §4.1's
// ordering contract, only finalises the item once the data connection's
// outcome is also known.
func (w *Worker) onTransferCmdReply(ev Event) []Action {
	code := ev.Code
	w.cmdReplyCode = &code

	return w.tryFinishTransfer()
}

func (w *Worker) handleDataConConnected() []Action {
	return nil
}

func (w *Worker) handleDataConClosed() []Action {
	w.dataConClosed = true
	w.State = WaitForDataConFinish

	return w.tryFinishTransfer()
}

// handleDataConFlushData implements the ASCII-for-binary guard (spec.md
// §4.1/§8 scenario 3): the engine already ran LooksBinary over the buffer
// before delivering the event; here we only resolve the configured policy
// into the worker's reaction. A tripped guard under the download direction
// only makes sense while ASCII transfer is actually in effect.
func (w *Worker) handleDataConFlushData(ev Event) []Action {
	if !ev.AsciiGuardTripped || !w.Item.ASCIITransfer {
		return nil
	}

	switch DecideAsciiForBinaryAction(w.params.AsciiPolicy) {
	case ActionAskUserAboutBinary:
		w.State = UserInputNeeded
		w.Item.SetState(queue.UserInputNeeded)

		return []Action{{Kind: ActionCloseDataConn}, {Kind: ActionAskUser}, {Kind: ActionItemUpdated}}
	case ActionRetryInBinary:
		w.Item.ASCIITransfer = false

		return append([]Action{{Kind: ActionCloseDataConn}}, w.retryImmediately()...)
	case ActionSkipItem:
		return w.skipItem("ascii-for-binary-file guard tripped, skipped by policy")
	default:
		return nil
	}
}

func (w *Worker) skipItem(reason string) []Action {
	w.State = Skipped
	w.Item.SetState(queue.Skipped)

	return []Action{{Kind: ActionCloseDataConn}, {Kind: ActionLog, Message: reason}, {Kind: ActionItemUpdated}}
}

func (w *Worker) handleDiskWorkFinished(ev Event) []Action {
	w.diskFlushPending = false

	if !ev.DiskWriteOK {
		return w.failItem(fmt.Sprintf("disk write failed: %v", ev.DiskWriteErr))
	}

	if w.State == DrainThenQuit {
		return []Action{{Kind: ActionItemUpdated}}
	}

	return w.tryFinishTransfer()
}

// tryFinishTransfer implements the ordering contract: success requires a
// 2xx command reply, all bytes flushed, and the data connection closed
// cleanly, all observed before the item is declared done.
func (w *Worker) tryFinishTransfer() []Action {
	if w.cmdReplyCode == nil || !w.dataConClosed || w.diskFlushPending {
		return nil
	}

	w.State = ProcessTransferCmdRes

	return w.classifyAndAct(*w.cmdReplyCode, w.dataDropped)
}

func (w *Worker) classifyAndAct(code int, dataDropped bool) []Action {
	class := ClassifyCmdReply(code, dataDropped)

	switch class {
	case RetryNone:
		return w.succeedTransfer()
	case RetryPermanent:
		return w.failItem(fmt.Sprintf("permanent failure, code %d", code))
	case RetryAutoDelay:
		return w.scheduleRetry()
	case RetryAutoImmediate:
		return w.retryImmediately()
	default:
		return nil
	}
}

func (w *Worker) succeedTransfer() []Action {
	w.State = TransferFinished

	if w.params.MoveAfterSuccess {
		w.State = MoveWaitForDeleRes

		return []Action{{Kind: ActionSendCommand, Command: "DELE", Arg: w.Item.SourceName}}
	}

	return w.finishDone()
}

func (w *Worker) onDeleReply(ev Event) []Action {
	if ev.Code < 200 || ev.Code >= 300 {
		w.log("move succeeded but source delete failed", "code", ev.Code)
	}

	return w.finishDone()
}

func (w *Worker) finishDone() []Action {
	w.State = Done
	w.Item.SetState(queue.Done)

	return []Action{{Kind: ActionItemUpdated}}
}

func (w *Worker) failItem(reason string) []Action {
	w.State = Failed
	w.Item.SetState(queue.Failed)

	return []Action{{Kind: ActionLog, Message: reason}, {Kind: ActionItemUpdated}}
}

func (w *Worker) scheduleRetry() []Action {
	w.State = DelayedAutoRetry
	w.Item.SetState(queue.Waiting)

	return []Action{{Kind: ActionScheduleDelayedRetry}}
}

func (w *Worker) retryImmediately() []Action {
	w.State = StartWork
	w.Item.SetState(queue.Waiting)

	return []Action{{Kind: ActionItemUpdated}}
}

func (w *Worker) handleDelayedAutoRetry() []Action {
	if w.State != DelayedAutoRetry {
		return nil
	}

	w.State = StartWork
	w.connectAttempts++

	return w.handleActivate()
}

// handleCmdConClosed implements the connection-drop retry class: a
// control-connection loss in any working sub-state retries the item,
// unless the worker was already terminal.
func (w *Worker) handleCmdConClosed(ev Event) []Action {
	class := ClassifyCmdConClosed(w.State)
	if class == RetryNone {
		return nil
	}

	w.State = StartWork
	w.Item.SetState(queue.Waiting)
	w.Item.LastOSError = ev.OSError

	return []Action{{Kind: ActionItemUpdated}}
}

// handleNoDataTransferTimeout implements the no-data-transfer watchdog
// contract: a synthesised close forces the usual close-path, which here
// means treating it exactly like a mid-transfer data connection drop.
func (w *Worker) handleNoDataTransferTimeout() []Action {
	w.dataDropped = true

	return append([]Action{{Kind: ActionCloseDataConn}}, w.scheduleRetry()...)
}

// handleShouldStop implements "quit on stop": if the worker is mid-flush
// to disk, it drains (waits for the disk job) before quitting; otherwise
// it quits immediately. QUIT is sent at most once and its reply is
// ignored either way.
func (w *Worker) handleShouldStop() []Action {
	if w.quitSent {
		return nil
	}

	w.quitSent = true

	if w.diskFlushPending {
		w.State = DrainThenQuit

		return []Action{{Kind: ActionQuitOnce, Command: "QUIT"}}
	}

	w.State = Done

	return []Action{{Kind: ActionQuitOnce, Command: "QUIT"}, {Kind: ActionItemUpdated}}
}

// HandleCommandTimeout implements "early success with stuck control
// connection": if every byte was observed transferred (the data
// connection closed cleanly and the disk flush finished) but the command
// reply never arrived before the configured timeout, force a resume on
// the next attempt instead of re-downloading from scratch.
func (w *Worker) HandleCommandTimeout() []Action {
	if w.cmdReplyCode != nil {
		return nil
	}

	if w.dataConClosed && !w.diskFlushPending {
		w.Item.ForcedAction = queue.ForcedResume
		w.State = StartWork
		w.Item.SetState(queue.Waiting)

		return []Action{{Kind: ActionLog, Message: "command reply missing after full transfer, forcing resume"}, {Kind: ActionItemUpdated}}
	}

	return w.scheduleRetry()
}

// MarkDiskJobStarted records that the data connection handed a buffer to
// the disk thread, per spec.md §4.1's disk hand-off contract: the buffer
// is owned by the disk thread until EventDiskWorkWriteFinished arrives.
func (w *Worker) MarkDiskJobStarted() {
	w.diskFlushPending = true
}

// SetOpenedFileSize records the local opened file's size, used by
// NegotiateResume.
func (w *Worker) SetOpenedFileSize(size int64) {
	w.openedFileSize = size
}

// OpenedFileSize returns the size last recorded by SetOpenedFileSize.
func (w *Worker) OpenedFileSize() int64 {
	return w.openedFileSize
}

// RestOffset returns the offset a successfully negotiated REST settled
// on (0 if no resume was attempted, or if REST failed and fell back to
// overwrite). The engine uses it to know where to reopen the local file
// and how many overlap bytes to verify (openedFileSize - RestOffset).
func (w *Worker) RestOffset() int64 {
	return w.restOffset
}

// RestSucceeded reports whether a REST command was sent for this attempt
// and accepted by the server (3xx), per spec.md §4.1's "resume-overlap
// bytes... byte-identical between local and remote on a successful
// resume" testable property: the engine only needs to verify the
// overlap when this is true. A REST that failed and fell back to
// overwrite (or was never sent) reports false.
func (w *Worker) RestSucceeded() bool {
	return w.restSucceeded
}
