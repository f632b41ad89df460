package ftpclientcore

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fclairamb/ftpclientcore/queue"
	"github.com/fclairamb/ftpclientcore/worker"
)

// TestExecutorRunDrivesSuccessfulPassiveDownload exercises the full
// control+data choreography for a plain RETR: PASV, TYPE I, RETR, a data
// connection carrying the file's bytes, and a final 226, ending with the
// item marked Done and the bytes landed on the local filesystem.
func TestExecutorRunDrivesSuccessfulPassiveDownload(t *testing.T) {
	dataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dataLn.Close()

	_, dataPortStr, err := net.SplitHostPort(dataLn.Addr().String())
	require.NoError(t, err)
	dataPort, err := strconv.Atoi(dataPortStr)
	require.NoError(t, err)

	const payload = "hello from the data connection"

	go func() {
		conn, err := dataLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(payload))
	}()

	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))

		assert.Equal(t, "PASV", readCommand(br))
		conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, dataPort)))

		assert.Equal(t, "TYPE I", readCommand(br))
		conn.Write([]byte("200 type set\r\n"))

		assert.Equal(t, "RETR remote.bin", readCommand(br))
		conn.Write([]byte("150 opening data connection\r\n"))
		conn.Write([]byte("226 transfer complete\r\n"))
	})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	item := &queue.Item{
		Type:       queue.CopyFile,
		State:      queue.Waiting,
		SourceName: "remote.bin",
		TargetName: "local.bin",
	}

	w := worker.New(item, "w1", nil, worker.Params{Mode: worker.ModePassive, ResumeMode: worker.OverwriteOnly})

	fs := afero.NewMemMapFs()
	exec := NewExecutor(session, w, fs, noopLogger{}, KeepAlive{})

	require.NoError(t, exec.Run())

	assert.Equal(t, queue.Done, item.State)

	got, err := afero.ReadFile(fs, "local.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

// TestExecutorRunSurfacesPermanentFailure exercises a PASV command
// rejected outright: the item should end Failed without ever touching a
// data connection.
func TestExecutorRunSurfacesPermanentFailure(t *testing.T) {
	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))

		assert.Equal(t, "PASV", readCommand(br))
		conn.Write([]byte("502 command not implemented\r\n"))
	})

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	item := &queue.Item{Type: queue.CopyFile, State: queue.Waiting, SourceName: "remote.bin", TargetName: "local.bin"}
	w := worker.New(item, "w1", nil, worker.Params{Mode: worker.ModePassive, ResumeMode: worker.OverwriteOnly})

	exec := NewExecutor(session, w, afero.NewMemMapFs(), noopLogger{}, KeepAlive{})
	require.NoError(t, exec.Run())

	assert.Equal(t, queue.Failed, item.State)
}

// TestExecutorRunSendsKeepAliveWhileAwaitingFinalReply exercises the
// supplemented keep-alive feature: the fake server withholds RETR's final
// reply until it has seen one NOOP probe, proving the executor recognises
// the probe's own reply for what it is instead of mistaking it for the
// transfer's completion.
func TestExecutorRunSendsKeepAliveWhileAwaitingFinalReply(t *testing.T) {
	dataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dataLn.Close()

	_, dataPortStr, err := net.SplitHostPort(dataLn.Addr().String())
	require.NoError(t, err)
	dataPort, err := strconv.Atoi(dataPortStr)
	require.NoError(t, err)

	const payload = "small payload"

	go func() {
		conn, aerr := dataLn.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(payload))
	}()

	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))

		assert.Equal(t, "PASV", readCommand(br))
		conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, dataPort)))

		assert.Equal(t, "TYPE I", readCommand(br))
		conn.Write([]byte("200 type set\r\n"))

		assert.Equal(t, "RETR remote.bin", readCommand(br))

		// Withhold the final reply until the keep-alive probe arrives.
		assert.Equal(t, "NOOP", readCommand(br))
		conn.Write([]byte("200 noop ok\r\n"))

		conn.Write([]byte("226 transfer complete\r\n"))
	})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	item := &queue.Item{
		Type:       queue.CopyFile,
		State:      queue.Waiting,
		SourceName: "remote.bin",
		TargetName: "local.bin",
	}

	w := worker.New(item, "w1", nil, worker.Params{Mode: worker.ModePassive, ResumeMode: worker.OverwriteOnly})

	fs := afero.NewMemMapFs()
	exec := NewExecutor(session, w, fs, noopLogger{}, KeepAlive{
		SendEvery: 20 * time.Millisecond,
		StopAfter: 3,
		Command:   "NOOP",
	})

	require.NoError(t, exec.Run())

	assert.Equal(t, queue.Done, item.State)

	got, rerr := afero.ReadFile(fs, "local.bin")
	require.NoError(t, rerr)
	assert.Equal(t, payload, string(got))
}

// TestExecutorRunResumesDownloadAndVerifiesOverlap exercises the
// resume-overlap testable property (spec.md §4.1/§8): a partial local
// file already ends in the same bytes the server resends for the
// negotiated REST offset, so the download appends the rest without
// touching what agreed.
func TestExecutorRunResumesDownloadAndVerifiesOverlap(t *testing.T) {
	const local = "HELLOWORLD"         // 10 bytes already on disk
	const remoteFromOffset = "ORLD-NEW-TAIL" // what REST 6 + RETR streams back

	dataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dataLn.Close()

	_, dataPortStr, err := net.SplitHostPort(dataLn.Addr().String())
	require.NoError(t, err)
	dataPort, err := strconv.Atoi(dataPortStr)
	require.NoError(t, err)

	go func() {
		conn, aerr := dataLn.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(remoteFromOffset))
	}()

	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))

		assert.Equal(t, "PASV", readCommand(br))
		conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, dataPort)))

		assert.Equal(t, "TYPE I", readCommand(br))
		conn.Write([]byte("200 type set\r\n"))

		assert.Equal(t, "REST 6", readCommand(br))
		conn.Write([]byte("350 ready for REST\r\n"))

		assert.Equal(t, "RETR remote.bin", readCommand(br))
		conn.Write([]byte("150 opening data connection\r\n"))
		conn.Write([]byte("226 transfer complete\r\n"))
	})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "local.bin", []byte(local), 0o644))

	item := &queue.Item{
		Type:       queue.CopyFile,
		State:      queue.Waiting,
		SourceName: "remote.bin",
		TargetName: "local.bin",
	}

	w := worker.New(item, "w1", nil, worker.Params{
		Mode:          worker.ModePassive,
		ResumeMode:    worker.ResumeOrOverwrite,
		ResumeOverlap: 4,
	})

	exec := NewExecutor(session, w, fs, noopLogger{}, KeepAlive{})

	require.NoError(t, exec.Run())

	assert.Equal(t, queue.Done, item.State)

	got, rerr := afero.ReadFile(fs, "local.bin")
	require.NoError(t, rerr)
	assert.Equal(t, "HELLOWORLD-NEW-TAIL", string(got))
}

// TestExecutorRunFailsWhenResumeOverlapMismatches exercises the other
// side of the same property: the server's overlap bytes disagree with
// what's already on disk, so the item must fail rather than silently
// stitch mismatched content together.
func TestExecutorRunFailsWhenResumeOverlapMismatches(t *testing.T) {
	const local = "HELLOWORLD"
	const remoteFromOffset = "XXXX-NEW-TAIL" // doesn't match local[6:10] == "ORLD"

	dataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dataLn.Close()

	_, dataPortStr, err := net.SplitHostPort(dataLn.Addr().String())
	require.NoError(t, err)
	dataPort, err := strconv.Atoi(dataPortStr)
	require.NoError(t, err)

	go func() {
		conn, aerr := dataLn.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(remoteFromOffset))
	}()

	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))

		assert.Equal(t, "PASV", readCommand(br))
		conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, dataPort)))

		assert.Equal(t, "TYPE I", readCommand(br))
		conn.Write([]byte("200 type set\r\n"))

		assert.Equal(t, "REST 6", readCommand(br))
		conn.Write([]byte("350 ready for REST\r\n"))

		assert.Equal(t, "RETR remote.bin", readCommand(br))
		conn.Write([]byte("150 opening data connection\r\n"))
		conn.Write([]byte("226 transfer complete\r\n"))
	})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "local.bin", []byte(local), 0o644))

	item := &queue.Item{
		Type:       queue.CopyFile,
		State:      queue.Waiting,
		SourceName: "remote.bin",
		TargetName: "local.bin",
	}

	w := worker.New(item, "w1", nil, worker.Params{
		Mode:          worker.ModePassive,
		ResumeMode:    worker.ResumeOrOverwrite,
		ResumeOverlap: 4,
	})

	exec := NewExecutor(session, w, fs, noopLogger{}, KeepAlive{})

	require.NoError(t, exec.Run())

	assert.Equal(t, queue.Failed, item.State)
}

// TestExecutorRunWithReconnectRedialsAfterConnectionLoss exercises the
// connection-drop retry class end to end: the first control connection
// accepts RETR and then goes away before its final reply arrives, which
// should surface as worker.EventCmdConClosed rather than a fatal Go error
// out of Run, park the item back at queue.Waiting with LastOSError set, and
// let RunWithReconnect redial the same address and finish the transfer on
// the second attempt.
func TestExecutorRunWithReconnectRedialsAfterConnectionLoss(t *testing.T) {
	firstDataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer firstDataLn.Close()
	_, firstDataPortStr, err := net.SplitHostPort(firstDataLn.Addr().String())
	require.NoError(t, err)
	firstDataPort, err := strconv.Atoi(firstDataPortStr)
	require.NoError(t, err)

	secondDataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer secondDataLn.Close()
	_, secondDataPortStr, err := net.SplitHostPort(secondDataLn.Addr().String())
	require.NoError(t, err)
	secondDataPort, err := strconv.Atoi(secondDataPortStr)
	require.NoError(t, err)

	const payload = "payload after reconnect"

	go func() {
		conn, aerr := firstDataLn.Accept()
		if aerr != nil {
			return
		}
		conn.Close()
	}()
	go func() {
		conn, aerr := secondDataLn.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(payload))
	}()

	ctrlLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ctrlLn.Close()

	go func() {
		for attempt := 1; attempt <= 2; attempt++ {
			conn, aerr := ctrlLn.Accept()
			if aerr != nil {
				return
			}
			br := bufio.NewReader(conn)

			conn.Write([]byte("220 hi\r\n"))
			readCommand(br) // USER
			conn.Write([]byte("230 logged in\r\n"))
			readCommand(br) // SYST
			conn.Write([]byte("215 UNIX\r\n"))
			readCommand(br) // PASV

			if attempt == 1 {
				conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, firstDataPort)))
				readCommand(br) // TYPE I
				conn.Write([]byte("200 type set\r\n"))
				readCommand(br) // RETR
				conn.Write([]byte("150 opening data connection\r\n"))
				conn.Close() // drop before the final reply arrives

				continue
			}

			conn.Write([]byte(pasvReplyFor(127, 0, 0, 1, secondDataPort)))
			readCommand(br) // TYPE I
			conn.Write([]byte("200 type set\r\n"))
			readCommand(br) // RETR
			conn.Write([]byte("150 opening data connection\r\n"))
			conn.Write([]byte("226 transfer complete\r\n"))
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ctrlLn.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	session, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer session.conn.Close()

	item := &queue.Item{
		Type:       queue.CopyFile,
		State:      queue.Waiting,
		SourceName: "remote.bin",
		TargetName: "local.bin",
	}

	w := worker.New(item, "w1", nil, worker.Params{Mode: worker.ModePassive, ResumeMode: worker.OverwriteOnly})

	fs := afero.NewMemMapFs()
	exec := NewExecutor(session, w, fs, noopLogger{}, KeepAlive{})

	require.NoError(t, exec.RunWithReconnect("secret", 2*time.Second, 1))

	assert.Equal(t, queue.Done, item.State)

	got, err := afero.ReadFile(fs, "local.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

// pasvReplyFor renders a 227 reply for the given IP octets and port, the
// inverse of parsePasvReply, kept local to the test since production code
// never needs to produce this format.
func pasvReplyFor(a, b, c, d, port int) string {
	p1 := port / 256
	p2 := port % 256

	return "227 Entering Passive Mode (" +
		strconv.Itoa(a) + "," + strconv.Itoa(b) + "," + strconv.Itoa(c) + "," + strconv.Itoa(d) + "," +
		strconv.Itoa(p1) + "," + strconv.Itoa(p2) + ").\r\n"
}
