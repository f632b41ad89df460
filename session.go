package ftpclientcore

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fclairamb/ftpclientcore/ftpreply"
	"github.com/fclairamb/ftpclientcore/listing"
	"github.com/fclairamb/ftpclientcore/uploadcache"
	golog "github.com/fclairamb/ftpclientcore/log"
)

// Session owns one control connection and everything scoped to it: the
// per-session upload listing cache (spec.md §4.5, "per session, not
// process-wide"), the server type it settled on (possibly handed to it
// straight from a Manager's ServerTypeCache), and a child logger carrying
// its identity, the way the teacher's ClientCommand carries a logger
// derived from the server's with "clientId" attached (server.go's
// clientArrival).
type Session struct {
	id     Identity
	logger golog.Logger

	conn   net.Conn
	reader *bufio.Reader

	welcome string
	syst    string

	ServerType listing.ServerType
	Listings   *uploadcache.Cache

	tlsConfig *tls.Config
}

// DialSession opens the control connection, reads the welcome banner and
// logs in, mirroring the sequence a real FTP client performs before any
// data connection can be opened (spec.md §4.6's prerequisite for
// autodetection: welcome text and SYST reply must be in hand first).
func DialSession(id Identity, password string, logger golog.Logger, dialTimeout time.Duration) (*Session, error) {
	s := &Session{
		id:       id,
		logger:   logger.With("sessionId", net.JoinHostPort(id.Host, strconv.Itoa(id.Port)), "user", id.User),
		Listings: uploadcache.New(),
	}

	if err := s.connectAndLogin(password, dialTimeout); err != nil {
		return nil, err
	}

	return s, nil
}

// Reconnect re-dials the same (user, host, port) this Session was
// originally opened for, replacing its control connection and re-running
// login and SYST in place. Everything else the Session owns — the
// per-session upload listing cache, the cached ServerType — survives the
// reconnect untouched; only ReevaluateServerType decides whether the
// cached type still applies to the fresh welcome/SYST text. Grounded on
// SPEC_FULL.md §3 / original_source/fs3.cpp's reconnect-mid-item path,
// the client-side half of the teacher's own accept-a-new-connection loop
// in server.go.
func (s *Session) Reconnect(password string, dialTimeout time.Duration) error {
	if s.conn != nil {
		_ = s.conn.Close()
	}

	return s.connectAndLogin(password, dialTimeout)
}

// connectAndLogin dials, reads the welcome banner, logs in and reads
// SYST, storing the result on s. Shared by DialSession and Reconnect so
// the exact same sequence runs whichever triggered the connection.
func (s *Session) connectAndLogin(password string, dialTimeout time.Duration) error {
	addr := net.JoinHostPort(s.id.Host, strconv.Itoa(s.id.Port))

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return NewEngineError(KindConnectionRefused, fmt.Sprintf("dialing %s", addr), err)
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)

	welcome, err := s.readReply()
	if err != nil {
		conn.Close()
		return NewEngineError(KindBadReply, "reading welcome banner", err)
	}
	if !welcome.Positive() {
		conn.Close()
		return NewEngineError(KindUnexpectedCode, fmt.Sprintf("server refused connection: %d %s", welcome.Code, welcome.Message()), nil)
	}
	s.welcome = welcome.Message()

	if err := s.login(s.id.User, password); err != nil {
		conn.Close()
		return err
	}

	syst, err := s.Command("SYST")
	if err == nil && syst.Positive() {
		s.syst = syst.Message()
	}

	return nil
}

// login runs USER/PASS, tolerating a server that accepts USER alone
// (230 with no PASS round-trip) the way RFC 959 allows.
func (s *Session) login(user, password string) error {
	if user == "" {
		user = "anonymous"
	}

	reply, err := s.Command("USER", user)
	if err != nil {
		return err
	}

	switch reply.Class() {
	case 2:
		return nil
	case 3:
		reply, err = s.Command("PASS", password)
		if err != nil {
			return err
		}
		if !reply.Positive() {
			return NewEngineError(KindUnexpectedCode, fmt.Sprintf("login rejected: %d %s", reply.Code, reply.Message()), nil)
		}
		return nil
	default:
		return NewEngineError(KindUnexpectedCode, fmt.Sprintf("USER rejected: %d %s", reply.Code, reply.Message()), nil)
	}
}

// Command sends one command line and reads back its reply, the basic
// control-connection round-trip every higher-level operation is built
// from.
func (s *Session) Command(cmd string, args ...string) (ftpreply.Reply, error) {
	if err := s.WriteCommand(cmd, args...); err != nil {
		return ftpreply.Reply{}, err
	}

	return s.readReply()
}

// WriteCommand sends one command line without reading its reply, for
// callers that need to read the reply on their own schedule — a RETR/STOR
// whose final reply only arrives once the data connection has been
// drained, which the caller must be free to do concurrently with reading
// the data connection itself rather than blocking on it first.
func (s *Session) WriteCommand(cmd string, args ...string) error {
	line := ftpreply.EncodeCommand(cmd, args...)

	if _, err := s.conn.Write([]byte(line)); err != nil {
		return NewEngineError(KindSendFailed, fmt.Sprintf("sending %s", cmd), err)
	}

	return nil
}

func (s *Session) readReply() (ftpreply.Reply, error) {
	reply, err := ftpreply.Read(s.reader)
	if err != nil {
		return ftpreply.Reply{}, NewEngineError(KindRecvFailed, "reading reply", err)
	}

	return reply, nil
}

// readReplyOrTimeout reads one reply, but gives up (timedOut=true, no error)
// if nothing arrives within d. Used by the keep-alive sender to wait for a
// RETR/STOR's final reply while still noticing when it's time to probe the
// control connection so an idle firewall/NAT session doesn't get dropped
// mid-transfer (SPEC_FULL.md §3's supplemented keep-alive feature). The
// read deadline is always cleared before returning, so a normal blocking
// read on s.conn afterwards is unaffected.
func (s *Session) readReplyOrTimeout(d time.Duration) (reply ftpreply.Reply, timedOut bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return ftpreply.Reply{}, false, NewEngineError(KindRecvFailed, "setting read deadline", err)
	}
	defer s.conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	reply, err = s.readReply()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ftpreply.Reply{}, true, nil
		}

		return ftpreply.Reply{}, false, err
	}

	return reply, false, nil
}

// Welcome returns the banner text read at connect time, the input the
// autodetection condition language's welcome_contains/reg_exp_in_welcome
// match against (spec.md §4.6).
func (s *Session) Welcome() string {
	return s.welcome
}

// ReevaluateServerType re-applies autodetection after a reconnect, but
// only pays for it when it has to: if the Session already has a cached
// ServerType, its rules are tried against listingText first, and if they
// parse cleanly the cached type is kept as-is. Full autodetection
// (listing.Select over candidates, using the Session's current — i.e.
// freshly reconnected — welcome/SYST text) only runs if that strict
// parse fails. Supplemented from original_source/fs3.cpp, which bounds
// the cost of SPEC_FULL.md §3's server-type caching: a session that
// reconnects mid-item shouldn't re-run the full condition language
// against every candidate type on every retry when the cached type
// still matches what the server sends.
func (s *Session) ReevaluateServerType(candidates []listing.ServerType, listingText string) error {
	if s.ServerType.Name != "" {
		if _, err := listing.ParseStrict(s.ServerType.Rules, listingText, time.Now(), false); err == nil {
			return nil
		}
	}

	selected, _, err := listing.Select(candidates, s.welcome, s.syst, listingText, time.Now())
	if err != nil {
		return NewEngineError(KindBadReply, "re-running server type autodetection after reconnect", err)
	}

	s.ServerType = selected

	return nil
}

// Syst returns the SYST reply text read at connect time, the autodetection
// condition language's other input.
func (s *Session) Syst() string {
	return s.syst
}

// Identity returns the (user, host, port) this session was opened for.
func (s *Session) Identity() Identity {
	return s.id
}

// Close sends QUIT best-effort and releases the control connection.
func (s *Session) Close() error {
	_, _ = s.Command("QUIT")
	return s.conn.Close()
}

// StartTLS upgrades the control connection in place after an explicit
// AUTH TLS/SSL negotiation, matching the teacher's clientHandleCommand TLS
// upgrade path but from the client side: the command round-trip happens
// first, then the raw net.Conn is wrapped.
func (s *Session) StartTLS(cfg *tls.Config) error {
	reply, err := s.Command("AUTH", "TLS")
	if err != nil {
		return err
	}
	if !reply.Positive() {
		return NewEngineError(KindHandshakeFailed, fmt.Sprintf("AUTH TLS rejected: %d %s", reply.Code, reply.Message()), nil)
	}

	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return NewEngineError(KindHandshakeFailed, "TLS handshake on control connection", err)
	}

	s.conn = tlsConn
	s.reader = bufio.NewReader(tlsConn)
	s.tlsConfig = cfg

	return nil
}

// TLSConfig returns the TLS configuration negotiated for the control
// connection, if any, so a data connection dialed afterwards (PROT P) can
// reuse the same certificate trust settings.
func (s *Session) TLSConfig() *tls.Config {
	return s.tlsConfig
}
