package ftpclientcore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/fclairamb/ftpclientcore/dataconn"
	golog "github.com/fclairamb/ftpclientcore/log"
	"github.com/fclairamb/ftpclientcore/openedfiles"
	"github.com/fclairamb/ftpclientcore/queue"
	"github.com/fclairamb/ftpclientcore/uploadcache"
	"github.com/fclairamb/ftpclientcore/worker"
)

// pasvPattern pulls the six octets out of a PASV reply's
// "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)" text, the same address
// encoding the teacher's own PASV reply writer produces on the server
// side (transfer_pasv.go), read here instead of written.
var pasvPattern = regexp.MustCompile(`(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)

// Executor drives one worker.Worker against a real Session's control
// connection and a real dataconn.Conn, executing the Actions the worker
// returns and translating observed outcomes back into worker.Events. It
// is grounded on the teacher's clientHandleCommand/transferHandler pair:
// there, one goroutine reads commands off a real socket and dispatches to
// handlers that open a second, data, connection; here the same two-socket
// choreography runs client-side, driven by the worker's state machine
// instead of the teacher's big switch statement.
//
// Run is synchronous except for the RETR/STOR path. A transfer's final
// control reply (226/4xx/5xx) is only sent by a compliant server once the
// data connection has been fully drained on both ends, so for anything
// bigger than the TCP send window the final-reply read and the data pump
// have to happen concurrently — see sendThenPumpConcurrently. Every other
// command's reply arrives without depending on a second connection and
// stays on the plain sequential path.
type Executor struct {
	session *Session
	w       *worker.Worker
	fs      afero.Fs
	logger  golog.Logger

	dataConn *dataconn.Conn

	retryDelay  time.Duration
	keepAlive   KeepAlive
	verifier    ResumeVerifier
	openedFiles *openedfiles.Registry
}

// NewExecutor builds an Executor for w (and the queue.Item it was
// constructed against) running over session, using fs for the local side
// of the transfer. keepAlive configures the control-connection probe sent
// while a RETR/STOR's final reply is pending (SPEC_FULL.md §3); its zero
// value (SendEvery == 0) disables the feature entirely. The resume-overlap
// verification (SPEC_FULL.md §3) defaults to ByteExactResumeVerifier; use
// SetResumeVerifier to override it.
func NewExecutor(session *Session, w *worker.Worker, fs afero.Fs, logger golog.Logger, keepAlive KeepAlive) *Executor {
	return &Executor{
		session:    session,
		w:          w,
		fs:         fs,
		logger:     logger,
		retryDelay: worker.DefaultAutoRetryDelay,
		keepAlive:  keepAlive,
		verifier:   ByteExactResumeVerifier{},
	}
}

// SetResumeVerifier overrides the comparison used on a resumed
// download's overlap bytes, e.g. to substitute a rolling checksum for
// byte-exact comparison on very large files (SPEC_FULL.md §3).
func (e *Executor) SetResumeVerifier(v ResumeVerifier) {
	e.verifier = v
}

// SetOpenedFiles wires the process-wide opened-files registry (L2,
// openedfiles.Registry) into the executor so Run acquires and releases a
// lock against the item's remote path for the item's whole lifetime, per
// spec.md §2's "the worker reserves the source via L2 ... releases L2". A
// nil registry (the zero value, never set) disables the lock entirely.
func (e *Executor) SetOpenedFiles(r *openedfiles.Registry) {
	e.openedFiles = r
}

// item is a short alias for the queue.Item the driven worker owns.
func (e *Executor) item() *queue.Item {
	return e.w.Item
}

// recordOpenedFileSize stats the local side of the transfer before the
// worker negotiates a resume (spec.md §4.1's REST negotiation reads
// opened-file size off this): the download target if one already
// exists on disk, 0 otherwise. Uploads never resume in this engine (the
// remote side's size isn't known without a SIZE round-trip, which is
// out of scope), so they always report 0.
func (e *Executor) recordOpenedFileSize() {
	d := queue.Describe(e.item().Type)
	if d.Upload || d.Explore {
		e.w.SetOpenedFileSize(0)
		return
	}

	targetPath := e.item().PathType.Join(e.item().TargetPath, e.item().TargetName)

	info, err := e.fs.Stat(targetPath)
	if err != nil {
		e.w.SetOpenedFileSize(0)
		return
	}

	e.w.SetOpenedFileSize(info.Size())
}

// acquireOpenedFile reserves this item's remote path in the opened-files
// registry (L2) for items that actually touch one: transfers and
// directory explorations, per spec.md §2/§4.5 — ChAttr and any future
// non-path item type is left alone. The returned func releases the
// reservation and is always safe to call, including when no reservation
// was taken (no registry wired, or this item type doesn't need one).
func (e *Executor) acquireOpenedFile() (func(), error) {
	release := func() {}

	if e.openedFiles == nil {
		return release, nil
	}

	d := queue.Describe(e.item().Type)
	if !d.TransferRelated && !d.Explore {
		return release, nil
	}

	access := openedfiles.Read
	path, name := e.item().SourcePath, e.item().SourceName

	if d.Upload {
		access = openedfiles.Write
		path, name = e.item().TargetPath, e.item().TargetName
	}

	id := e.session.Identity()
	sessionKey := fmt.Sprintf("%s@%s:%d", id.normalizedUser(), strings.ToLower(id.Host), id.Port)

	uid, ok := e.openedFiles.Open(sessionKey, path, name, access)
	if !ok {
		return nil, NewEngineError(KindSrcFileInUse, fmt.Sprintf("%s %s already open for a conflicting access", path, name), nil)
	}

	return func() { e.openedFiles.Close(uid) }, nil
}

// Run drives the worker from EventActivate to a terminal item state
// (Done, Skipped, Failed) or until it parks waiting on user input, and
// returns the first unrecoverable engine error encountered, if any.
func (e *Executor) Run() error {
	release, err := e.acquireOpenedFile()
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("opened-files reservation failed", "err", err)
		}

		e.item().SetState(queue.Processing)
		e.item().SetState(queue.Failed)

		return nil
	}
	defer release()

	e.recordOpenedFileSize()

	pending := []worker.Event{{Kind: worker.EventActivate}}

	for len(pending) > 0 {
		ev := pending[0]
		pending = pending[1:]

		actions := e.w.Handle(ev)

		more, err := e.execute(actions)
		if err != nil {
			return err
		}

		pending = append(pending, more...)

		if e.terminal() {
			return nil
		}
	}

	return nil
}

// RunWithReconnect drives the worker like Run, but on a control-connection
// loss mid-item it re-dials the same session with Session.Reconnect before
// calling Run again, up to maxAttempts further reconnects. Grounded on
// SPEC_FULL.md §3 / original_source/fs3.cpp's reconnect-mid-item path.
//
// Run parks an item at queue.Waiting and returns whenever a retry class
// needs a fresh EventActivate it doesn't inject itself — that covers both an
// ordinary in-session retry (e.g. RetryAutoImmediate after a data-connection
// hiccup, where the control connection is still fine) and a genuine
// connection loss. This method tells them apart by checking LastOSError,
// which only handleCmdConClosed sets: a plain Waiting with no LastOSError
// means the caller should just call Run again directly, so only the
// LastOSError case triggers a Reconnect here. A caller driving an Explore
// item across a reconnect owns re-running Session.ReevaluateServerType
// itself against the next pumpExplore fetch — this method only owns the
// connection-level retry, not a listing fetch's server-type re-check.
func (e *Executor) RunWithReconnect(password string, dialTimeout time.Duration, maxAttempts int) error {
	if err := e.Run(); err != nil {
		return err
	}

	for attempt := 0; attempt < maxAttempts && e.item().State == queue.Waiting && e.item().LastOSError != nil; attempt++ {
		if err := e.session.Reconnect(password, dialTimeout); err != nil {
			return err
		}

		e.item().LastOSError = nil

		if err := e.Run(); err != nil {
			return err
		}
	}

	return nil
}

// terminal reports whether the item has reached a state Run should stop
// driving further events for: a done/skipped/failed item, or one parked
// waiting on a user decision the caller must supply out of band.
func (e *Executor) terminal() bool {
	switch e.item().State {
	case queue.Done, queue.Skipped, queue.Failed, queue.UserInputNeeded:
		return true
	default:
		return false
	}
}

// execute carries out each action in order, returning any further events
// the engine observed as a result (a reply read off the control
// connection, a data connection outcome, a disk result) for Run to feed
// back into the worker on the next iteration.
func (e *Executor) execute(actions []worker.Action) ([]worker.Event, error) {
	var events []worker.Event

	for i := 0; i < len(actions); i++ {
		a := actions[i]

		switch a.Kind {
		case worker.ActionSendCommand:
			// sendTransferCommand pairs RETR/STOR with ActionActivateDataConn
			// in the same batch (worker.go's sendTransferCommand): a
			// compliant server only sends the final reply once the data
			// connection has been fully drained, which for anything larger
			// than the TCP send window means the final reply and the data
			// pump must run concurrently, not command-then-pump in series.
			if i+1 < len(actions) && actions[i+1].Kind == worker.ActionActivateDataConn {
				replyEv, dataEvs, err := e.sendThenPumpConcurrently(a.Command, a.Arg)
				if err != nil {
					if isControlConnectionLoss(err) {
						return append(events, worker.Event{Kind: worker.EventCmdConClosed, OSError: err}), nil
					}
					return nil, err
				}
				events = append(events, replyEv)
				events = append(events, dataEvs...)
				i++

				continue
			}

			ev, err := e.sendAndAwait(a.Command, a.Arg)
			if err != nil {
				if isControlConnectionLoss(err) {
					return append(events, worker.Event{Kind: worker.EventCmdConClosed, OSError: err}), nil
				}
				return nil, err
			}
			events = append(events, ev)

		case worker.ActionOpenPassiveDataConn:
			if err := e.openPassive(a.IP, a.Port); err != nil {
				if e.logger != nil {
					e.logger.Warn("opening passive data connection failed", "err", err)
				}
				events = append(events, worker.Event{Kind: worker.EventDataConClosed})
			}

		case worker.ActionOpenActiveListener:
			ev, err := e.openActiveListener()
			if err != nil {
				return nil, err
			}
			events = append(events, ev)

		case worker.ActionActivateDataConn:
			events = append(events, e.pump()...)

		case worker.ActionCloseDataConn:
			e.closeDataConn()

		case worker.ActionScheduleDelayedRetry:
			time.Sleep(e.retryDelay)
			events = append(events, worker.Event{Kind: worker.EventDelayedAutoRetry})

		case worker.ActionQuitOnce:
			_, _ = e.session.Command("QUIT")

		case worker.ActionLog:
			if e.logger != nil {
				e.logger.Info("worker", "message", a.Message)
			}

		case worker.ActionAskUser:
			// The caller observes this through the item's
			// UserInputNeeded state (terminal() stops Run there); the
			// executor itself has no UI to drive.

		case worker.ActionItemUpdated:
			// Progress/state reporting is read straight off the shared
			// queue.Item by whatever owns the batch, not pushed here.
		}
	}

	return events, nil
}

// sendThenPumpConcurrently sends cmd (RETR/STOR) and, without waiting for
// its reply, starts the data pump while a background goroutine reads the
// control connection for the final reply. Both finish before this
// returns: the pump because it runs to completion (or failure) on this
// goroutine, the reply read because either side closing its half of the
// data connection is what lets the server's final reply be sent at all.
func (e *Executor) sendThenPumpConcurrently(cmd, arg string) (worker.Event, []worker.Event, error) {
	if err := e.session.WriteCommand(cmd, nonEmptyArgs(arg)...); err != nil {
		return worker.Event{}, nil, err
	}

	type replyResult struct {
		ev  worker.Event
		err error
	}

	resultCh := make(chan replyResult, 1)

	go func() {
		ev, err := e.awaitFinalReplyWithKeepAlive()
		if err != nil {
			resultCh <- replyResult{err: err}

			return
		}

		resultCh <- replyResult{ev: ev}
	}()

	dataEvs := e.pump()

	res := <-resultCh
	if res.err != nil {
		return worker.Event{}, nil, res.err
	}

	return res.ev, dataEvs, nil
}

// awaitFinalReplyWithKeepAlive waits for RETR/STOR's final reply, optionally
// probing the control connection with a keep-alive command while it waits
// (SPEC_FULL.md §3). It is the sole reader and, for the probes themselves,
// the sole writer of the control connection during this window, so replies
// arrive in the same order commands were sent: every keep-alive this loop
// has sent gets exactly one reply before the real final reply does, which is
// what lets it tell the two apart without any other bookkeeping.
func (e *Executor) awaitFinalReplyWithKeepAlive() (worker.Event, error) {
	if e.keepAlive.SendEvery <= 0 {
		return e.awaitFinalReply()
	}

	pendingKeepAlives := 0
	probesLeft := e.keepAlive.StopAfter

	for {
		reply, timedOut, err := e.session.readReplyOrTimeout(e.keepAlive.SendEvery)
		if err != nil {
			return worker.Event{}, NewEngineError(KindRecvFailed, "awaiting final reply", err)
		}

		if timedOut {
			if probesLeft <= 0 {
				// Exhausted the configured probe budget: fall back to a
				// plain blocking wait for whatever arrives next.
				return e.awaitFinalReply()
			}

			if werr := e.session.WriteCommand(e.keepAlive.Command); werr != nil {
				return worker.Event{}, werr
			}

			pendingKeepAlives++
			probesLeft--

			continue
		}

		if reply.Class() == 1 {
			if e.logger != nil {
				e.logger.Debug("ftp-info-reply", "code", reply.Code, "text", reply.Message())
			}

			continue
		}

		if pendingKeepAlives > 0 {
			if e.logger != nil {
				e.logger.Debug("keep-alive-reply", "code", reply.Code, "text", reply.Message())
			}

			pendingKeepAlives--

			continue
		}

		return worker.Event{Kind: worker.EventCmdReplyReceived, Code: reply.Code, Text: reply.Message()}, nil
	}
}

// awaitFinalReply is the plain blocking wait used when keep-alive probing
// is disabled or exhausted.
func (e *Executor) awaitFinalReply() (worker.Event, error) {
	reply, err := e.session.readReply()
	for err == nil && reply.Class() == 1 {
		if e.logger != nil {
			e.logger.Debug("ftp-info-reply", "code", reply.Code, "text", reply.Message())
		}

		reply, err = e.session.readReply()
	}

	if err != nil {
		return worker.Event{}, NewEngineError(KindRecvFailed, "awaiting final reply", err)
	}

	return worker.Event{Kind: worker.EventCmdReplyReceived, Code: reply.Code, Text: reply.Message()}, nil
}

// sendAndAwait sends one command and reads replies until a non-1xx
// (final) reply arrives, logging every 1xx intermediate reply along the
// way the way spec.md §4.1's EventCmdInfoReceived describes, and
// enriching the final reply with the parsed PASV address when the
// command was PASV.
func (e *Executor) sendAndAwait(cmd, arg string) (worker.Event, error) {
	reply, err := e.session.Command(cmd, nonEmptyArgs(arg)...)
	if err != nil {
		return worker.Event{}, err
	}

	for reply.Class() == 1 {
		if e.logger != nil {
			e.logger.Debug("ftp-info-reply", "code", reply.Code, "text", reply.Message())
		}

		reply, err = e.session.readReply()
		if err != nil {
			return worker.Event{}, NewEngineError(KindRecvFailed, "awaiting final reply", err)
		}
	}

	ev := worker.Event{Kind: worker.EventCmdReplyReceived, Code: reply.Code, Text: reply.Message()}

	if cmd == "PASV" && reply.Code == 227 {
		ip, port, perr := parsePasvReply(reply.Message())
		if perr == nil {
			ev.IP = ip
			ev.Port = port
		} else {
			ev.Code = 550 // no usable address: treat like a rejection
		}
	}

	return ev, nil
}

func nonEmptyArgs(arg string) []string {
	if arg == "" {
		return nil
	}

	return []string{arg}
}

func parsePasvReply(text string) (string, int, error) {
	m := pasvPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, fmt.Errorf("executor: no address found in PASV reply %q", text)
	}

	octets := make([]int, 6)
	for i := 1; i <= 6; i++ {
		v, err := strconv.Atoi(m[i])
		if err != nil {
			return "", 0, fmt.Errorf("executor: malformed PASV octet in %q: %w", text, err)
		}
		octets[i-1] = v
	}

	ip := strings.Join([]string{
		strconv.Itoa(octets[0]), strconv.Itoa(octets[1]), strconv.Itoa(octets[2]), strconv.Itoa(octets[3]),
	}, ".")
	port := octets[4]*256 + octets[5]

	return ip, port, nil
}

func (e *Executor) openPassive(ip string, port int) error {
	e.dataConn = dataconn.NewConn(dataconn.Config{Direction: e.direction()})

	addr := fmt.Sprintf("%s:%d", ip, port)
	if err := e.dataConn.DialPassive(addr); err != nil {
		return NewEngineError(KindConnectionRefused, fmt.Sprintf("dialing data connection %s", addr), err)
	}

	return nil
}

func (e *Executor) openActiveListener() (worker.Event, error) {
	e.dataConn = dataconn.NewConn(dataconn.Config{Direction: e.direction()})

	localIP, _, err := net.SplitHostPort(e.session.conn.LocalAddr().String())
	if err != nil {
		return worker.Event{}, NewEngineError(KindBindFailed, "determining local address for active mode", err)
	}

	ip, port, err := e.dataConn.ListenActive(localIP)
	if err != nil {
		return worker.Event{}, NewEngineError(KindBindFailed, "opening active-mode listener", err)
	}

	return worker.Event{Kind: worker.EventDataConListeningForCon, IP: ip.String(), Port: port}, nil
}

// direction reports which way bytes flow for the item this executor is
// driving, per queue.Describe's Upload flag (queue/item.go's
// commandsMap-style dispatch table), rather than string-matching the
// item's type name.
func (e *Executor) direction() dataconn.Direction {
	if queue.Describe(e.item().Type).Upload {
		return dataconn.Upload
	}

	return dataconn.Download
}

// pump runs the actual byte transfer to completion, then reports the
// data connection as closed. Download bytes are accumulated through the
// dataconn.Conn flush-buffer contract (spec.md §4.2) so the disk write
// happens in flush-sized chunks the way the worker's disk hand-off
// expects; upload bytes are read straight off the local file; explore
// items read a directory listing instead of a file (spec.md §4.1/§4.5).
func (e *Executor) pump() []worker.Event {
	d := queue.Describe(e.item().Type)

	switch {
	case d.Explore:
		return e.pumpExplore()
	case d.Upload:
		return e.pumpUpload()
	default:
		return e.pumpDownload()
	}
}

// isTimeout reports whether err is a net.Error reporting a deadline
// expiry, the signal the watchdog-polling read/write loops use to
// distinguish "nothing arrived within this tick" from a real failure.
func isTimeout(err error) bool {
	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}

// handleNoDataTransferTimeout feeds a real EventNoDataTransferTimeout into
// the worker once CheckNoDataTransfer (spec.md §4.1/§8 scenario 4) trips,
// folding the resulting actions (closing the data connection, scheduling
// the retry) back into events the way every other action-driving call
// site does.
func (e *Executor) handleNoDataTransferTimeout() []worker.Event {
	if e.dataConn != nil {
		e.dataConn.MarkNoTransferTimeout()
	}

	actions := e.w.Handle(worker.Event{Kind: worker.EventNoDataTransferTimeout})

	events, err := e.execute(actions)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("handling no-data-transfer timeout failed", "err", err)
		}

		return []worker.Event{{Kind: worker.EventDataConClosed}}
	}

	return events
}

// adaptPacketSize feeds the data connection's current throughput into the
// too-big-packet adapter (spec.md §4.1/§4.2) after every successful
// read/write, mirroring a size change onto the dataconn.Conn and
// reallocating the pump's buffer so the next Read/Write actually uses it.
func (e *Executor) adaptPacketSize(adapter *worker.Adapter, buf *[]byte) {
	now := time.Now()
	before := adapter.Current()

	adapter.Observe(now, e.dataConn.Speed())

	after := adapter.Current()
	if after == before {
		return
	}

	if after < before {
		e.dataConn.MarkTooBig(before)
	}

	e.dataConn.SetPacketSize(after)
	adapter.BeginWindow(now, e.dataConn.Speed())
	e.dataConn.BeginSpeedWindow(now)
	*buf = make([]byte, after)
}

func (e *Executor) pumpDownload() []worker.Event {
	targetPath := e.item().PathType.Join(e.item().TargetPath, e.item().TargetName)

	resuming := e.w.RestSucceeded()
	offset := e.w.RestOffset()
	overlapLen := e.w.OpenedFileSize() - offset

	var (
		file  afero.File
		err   error
		local []byte // overlap bytes already on disk, nil unless resuming
	)

	if resuming {
		file, err = e.fs.OpenFile(targetPath, os.O_RDWR, 0o644)
		if err == nil && overlapLen > 0 {
			local = make([]byte, overlapLen)
			if _, rerr := file.ReadAt(local, offset); rerr != nil && rerr != io.EOF {
				err = rerr
			}
		}
		if err == nil {
			_, err = file.Seek(offset, io.SeekStart)
		}
	} else {
		file, err = e.fs.Create(targetPath)
	}

	if err != nil {
		if e.logger != nil {
			e.logger.Warn("opening local file for download failed", "path", targetPath, "err", err)
		}
		e.closeDataConn()

		return []worker.Event{{Kind: worker.EventDataConClosed}}
	}
	defer file.Close()

	pendingVerify := int64(0)
	var remote []byte
	if overlapLen > 0 {
		pendingVerify = overlapLen
		remote = make([]byte, 0, overlapLen)
	}
	verifyFailed := false

	adapter := worker.NewAdapter(time.Now())
	e.dataConn.SetPacketSize(adapter.Current())
	buf := make([]byte, adapter.Current())

	for {
		_ = e.dataConn.SetReadDeadline(time.Now().Add(worker.DefaultWatchdogInterval))

		n, rerr := e.dataConn.Read(buf)
		if n > 0 {
			e.dataConn.Accumulate(buf[:n])

			if e.dataConn.HasPendingFlush() {
				flushed, _, _ := e.dataConn.GiveFlushData()

				if events, stop := e.handleFlushedChunk(file, targetPath, flushed, &pendingVerify, &remote, local, &verifyFailed); stop {
					if events != nil {
						return events
					}

					break
				}
			}

			e.adaptPacketSize(adapter, &buf)
		}

		if rerr != nil {
			if isTimeout(rerr) {
				if worker.CheckNoDataTransfer(true, e.dataConn.LastActivity(), time.Now(), e.w.NoDataTransferTimeout()) {
					return e.handleNoDataTransferTimeout()
				}

				continue
			}

			if rerr != io.EOF && e.logger != nil {
				e.logger.Warn("data connection read error", "err", rerr)
			}
			break
		}

		if verifyFailed {
			break
		}
	}

	// Drain whatever is left in the flush buffer below the flush-size
	// threshold: the last partial chunk of a download would otherwise
	// never reach disk, since Accumulate only marks a flush pending once
	// the buffer is full.
	if flushed, n, _ := e.dataConn.GiveFlushData(); n > 0 {
		if events, _ := e.handleFlushedChunk(file, targetPath, flushed, &pendingVerify, &remote, local, &verifyFailed); events != nil {
			return events
		}
	}

	e.closeDataConn()

	if verifyFailed {
		return []worker.Event{{Kind: worker.EventResumeVerifyFailed}}
	}

	return []worker.Event{{Kind: worker.EventDataConClosed}}
}

// handleFlushedChunk runs the ASCII-binary guard (spec.md §4.1/§8 scenario
// 3) over one flushed download chunk before it reaches disk. The engine is
// the only side holding the raw bytes, so it runs the detector itself and
// only defers to the worker for what to do about a positive. A nil action
// list means the configured policy is Ignore, so the chunk is written
// exactly as it would be otherwise. stop reports whether the caller should
// stop pumping; events is non-nil only when the caller should return it
// directly instead of continuing to drain/close normally.
func (e *Executor) handleFlushedChunk(file afero.File, targetPath string, flushed []byte, pendingVerify *int64, remote *[]byte, local []byte, verifyFailed *bool) (events []worker.Event, stop bool) {
	if e.item().ASCIITransfer && worker.LooksBinary(flushed) {
		if actions := e.w.Handle(worker.Event{Kind: worker.EventDataConFlushData, AsciiGuardTripped: true}); len(actions) > 0 {
			e.dataConn.FlushDataFinished(flushed, true)

			ev, eerr := e.execute(actions)
			if eerr != nil {
				if e.logger != nil {
					e.logger.Warn("handling ascii-for-binary guard failed", "err", eerr)
				}

				return []worker.Event{{Kind: worker.EventDataConClosed}}, true
			}

			return ev, true
		}
	}

	ok := e.writeDownloadedChunk(file, targetPath, flushed, pendingVerify, remote, local, verifyFailed)
	e.dataConn.FlushDataFinished(flushed, true)

	return nil, !ok
}

// writeDownloadedChunk writes one flushed chunk to disk, first feeding
// whatever of it still falls within the negotiated resume-overlap to the
// verifier (spec.md §4.1/§8): the overlap always arrives at the very
// start of the stream, so only the first one or two chunks ever
// contribute to it. Returns false if the write itself failed (caller
// should stop pumping); a verification failure is reported through
// verifyFailed instead, since the chunk must still be written so the
// loop can be unwound cleanly by the caller checking that flag.
func (e *Executor) writeDownloadedChunk(file afero.File, targetPath string, chunk []byte, pendingVerify *int64, remote *[]byte, local []byte, verifyFailed *bool) bool {
	if *pendingVerify > 0 {
		take := *pendingVerify
		if take > int64(len(chunk)) {
			take = int64(len(chunk))
		}
		*remote = append(*remote, chunk[:take]...)
		*pendingVerify -= take

		if *pendingVerify == 0 {
			verifier := e.verifier
			if verifier == nil {
				verifier = ByteExactResumeVerifier{}
			}
			if !verifier.Verify(local, *remote) {
				*verifyFailed = true
				if e.logger != nil {
					e.logger.Warn("resume overlap verification failed", "path", targetPath)
				}
			}
		}
	}

	if _, werr := file.Write(chunk); werr != nil {
		if e.logger != nil {
			e.logger.Warn("writing to local file failed", "path", targetPath, "err", werr)
		}
		return false
	}

	return true
}

// writeChunkWithWatchdog writes data to the data connection, retrying a
// partial write across repeated watchdog-interval deadlines until either
// every byte is sent, a real error occurs, or the no-data-transfer
// threshold is exceeded (spec.md §4.1/§8 scenario 4). ok is false whenever
// the caller should stop pumping; events is only non-nil when the
// watchdog itself fired and already produced the events to return.
func (e *Executor) writeChunkWithWatchdog(data []byte) (ok bool, events []worker.Event) {
	for len(data) > 0 {
		_ = e.dataConn.SetWriteDeadline(time.Now().Add(worker.DefaultWatchdogInterval))

		n, werr := e.dataConn.Write(data)
		data = data[n:]

		if werr != nil {
			if isTimeout(werr) {
				if worker.CheckNoDataTransfer(true, e.dataConn.LastActivity(), time.Now(), e.w.NoDataTransferTimeout()) {
					return false, e.handleNoDataTransferTimeout()
				}

				continue
			}

			if e.logger != nil {
				e.logger.Warn("data connection write error", "err", werr)
			}

			return false, nil
		}
	}

	return true, nil
}

func (e *Executor) pumpUpload() []worker.Event {
	sourcePath := e.item().PathType.Join(e.item().SourcePath, e.item().SourceName)

	file, err := e.fs.Open(sourcePath)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("opening local file for upload failed", "path", sourcePath, "err", err)
		}
		return []worker.Event{{Kind: worker.EventDataConClosed}}
	}
	defer file.Close()

	adapter := worker.NewAdapter(time.Now())
	e.dataConn.SetPacketSize(adapter.Current())
	buf := make([]byte, adapter.Current())

	for {
		n, rerr := file.Read(buf)
		if n > 0 {
			ok, events := e.writeChunkWithWatchdog(buf[:n])
			if !ok {
				if events != nil {
					return events
				}

				break
			}

			e.adaptPacketSize(adapter, &buf)
		}
		if rerr != nil {
			break
		}
	}

	// Closing our write half is what lets the server observe EOF and
	// send STOR's final reply; without it the concurrent reply read in
	// sendThenPumpConcurrently would block forever.
	e.closeDataConn()

	return []worker.Event{{Kind: worker.EventDataConClosed}}
}

// pumpExplore reads a LIST/NLST response to completion and hands it to the
// session's upload listing cache (L5) to parse against the session's
// current server type (L1), per spec.md §4.1's listing fetch and §4.5's
// get-listing/listing-finished protocol. A session with no server type
// rules yet (autodetection never ran or never matched) can't parse the
// text at all; that is reported as a failed listing rather than guessed
// at, the same honest-failure shape ListingFailed already models for an
// inaccessible directory.
func (e *Executor) pumpExplore() []worker.Event {
	path := e.item().PathType.Join(e.item().SourcePath, e.item().SourceName)
	pathType := e.item().PathType

	if e.session.Listings != nil {
		e.session.Listings.GetListing(path, pathType, "", uploadcache.Waiter{})
	}

	var text bytes.Buffer

	adapter := worker.NewAdapter(time.Now())
	e.dataConn.SetPacketSize(adapter.Current())
	buf := make([]byte, adapter.Current())

	for {
		_ = e.dataConn.SetReadDeadline(time.Now().Add(worker.DefaultWatchdogInterval))

		n, rerr := e.dataConn.Read(buf)
		if n > 0 {
			text.Write(buf[:n])
			e.adaptPacketSize(adapter, &buf)
		}

		if rerr != nil {
			if isTimeout(rerr) {
				if worker.CheckNoDataTransfer(true, e.dataConn.LastActivity(), time.Now(), e.w.NoDataTransferTimeout()) {
					return e.handleNoDataTransferTimeout()
				}

				continue
			}

			if rerr != io.EOF && e.logger != nil {
				e.logger.Warn("data connection read error", "err", rerr)
			}
			break
		}
	}

	e.closeDataConn()

	if e.session.Listings == nil {
		return []worker.Event{{Kind: worker.EventDataConClosed}}
	}

	if len(e.session.ServerType.Rules) == 0 {
		if e.logger != nil {
			e.logger.Warn("listing fetched but no server type is known to parse it", "path", path)
		}

		e.session.Listings.ListingFailed(path, pathType, false)

		return []worker.Event{{Kind: worker.EventDataConClosed}}
	}

	if err := e.session.Listings.ListingFinished(path, pathType, e.session.ServerType.Rules, text.String(), time.Now(), false); err != nil {
		if e.logger != nil {
			e.logger.Warn("listing parse failed", "path", path, "err", err)
		}
	}

	return []worker.Event{{Kind: worker.EventDataConClosed}}
}

func (e *Executor) closeDataConn() {
	if e.dataConn != nil {
		_ = e.dataConn.Close()
	}
}

// isControlConnectionLoss reports whether err indicates the control
// connection itself is gone rather than some other engine failure. Such
// an error feeds worker.EventCmdConClosed so the worker's own
// connection-drop retry class (SPEC_FULL.md §3's reconnect-mid-item
// feature relies on it having already fired) gets to decide whether the
// item retries, instead of Run aborting outright on every transient
// network hiccup.
func isControlConnectionLoss(err error) bool {
	switch KindOf(err) {
	case KindConnectionReset, KindTimeout, KindSendFailed, KindRecvFailed, KindBadReply:
		return true
	default:
		return false
	}
}
