package ftpclientcore

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	golog "github.com/fclairamb/ftpclientcore/log"
)

// fakeFTPServer runs a minimal scripted FTP control-connection responder on
// a loopback listener, enough to exercise DialSession's welcome/login/SYST
// sequence without a real server.
func fakeFTPServer(t *testing.T, script func(conn net.Conn, br *bufio.Reader)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		script(conn, bufio.NewReader(conn))
	}()

	return ln.Addr().String()
}

func readCommand(br *bufio.Reader) string {
	line, _ := br.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func TestDialSessionLoginsWithUserAndPass(t *testing.T) {
	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 welcome to test server\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("331 need password\r\n"))

		assert.Equal(t, "PASS secret", readCommand(br))
		conn.Write([]byte("230 logged in\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX Type: L8\r\n"))
	})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "secret", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer s.conn.Close()

	assert.Equal(t, "welcome to test server", s.Welcome())
	assert.Equal(t, "UNIX Type: L8", s.Syst())
}

func TestDialSessionAcceptsUserAloneWithoutPass(t *testing.T) {
	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER anonymous", readCommand(br))
		conn.Write([]byte("230 logged in directly\r\n"))

		assert.Equal(t, "SYST", readCommand(br))
		conn.Write([]byte("215 UNIX\r\n"))
	})

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	s, err := DialSession(Identity{User: "", Host: host, Port: port}, "", noopLogger{}, 2*time.Second)
	require.NoError(t, err)
	defer s.conn.Close()
}

func TestDialSessionRejectedLoginReturnsError(t *testing.T) {
	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("220 hi\r\n"))

		assert.Equal(t, "USER bob", readCommand(br))
		conn.Write([]byte("331 need password\r\n"))

		assert.Equal(t, "PASS wrong", readCommand(br))
		conn.Write([]byte("530 login incorrect\r\n"))
	})

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	_, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "wrong", noopLogger{}, 2*time.Second)
	require.Error(t, err)
	assert.Equal(t, KindUnexpectedCode, KindOf(err))
}

func TestDialSessionRefusedAtBannerReturnsError(t *testing.T) {
	addr := fakeFTPServer(t, func(conn net.Conn, br *bufio.Reader) {
		conn.Write([]byte("421 too many connections\r\n"))
	})

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	_, err := DialSession(Identity{User: "bob", Host: host, Port: port}, "x", noopLogger{}, 2*time.Second)
	require.Error(t, err)
	assert.Equal(t, KindUnexpectedCode, KindOf(err))
}

// noopLogger discards everything, used where tests don't care about log
// output but need a non-nil log.Logger.
type noopLogger struct{}

func (noopLogger) Debug(event string, keyvals ...interface{})           {}
func (noopLogger) Info(event string, keyvals ...interface{})            {}
func (noopLogger) Warn(event string, keyvals ...interface{})            {}
func (noopLogger) Error(event string, err error, keyvals ...interface{}) {}
func (l noopLogger) With(keyvals ...interface{}) golog.Logger            { return l }
