package dataconn

import (
	"crypto/tls"
	"fmt"
)

// TLSMode selects whether/how a data connection is protected, mirroring
// the control connection's own security level (spec.md §6 session
// parameters implicitly carry this per session).
type TLSMode int

const (
	TLSNone TLSMode = iota
	TLSImplicit
	TLSExplicit
)

// sessionCacheSize matches rclone's ftp backend sizing for its
// tls.Config.ClientSessionCache: small, since one session reuses the
// control connection's negotiated parameters for every data connection it
// opens (PROT P reuses the session, avoiding a full handshake each time).
const sessionCacheSize = 32

// NewTLSConfig builds the tls.Config this engine's data connections share
// with their control connection, grounded on rclone's ftp backend
// tlsConfig(): a session cache so PBSZ/PROT-negotiated sessions resume
// instead of renegotiating, and ServerName set explicitly since data
// connections dial a bare IP that SNI can't infer.
func NewTLSConfig(serverName string, insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		ClientSessionCache: tls.NewLRUClientSessionCache(sessionCacheSize),
		MinVersion:         tls.VersionTLS12,
	}
}

// wrapTLS upgrades conn's net.Conn in place to a TLS client connection and
// completes the handshake synchronously. A handshake failure is returned
// wrapped as-is; it is not classified into retryable, non-retryable or
// unverified-certificate kinds.
func (c *Conn) wrapTLS(cfg *tls.Config) error {
	tlsConn := tls.Client(c.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("dataconn: TLS handshake failed: %w", err)
	}

	c.conn = tlsConn

	return nil
}
