package dataconn

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialSOCKS4Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req := make([]byte, 9) // VN CD PORT(2) IP(4) userid-terminator
		_, _ = readFull(conn, req)
		_, _ = conn.Write([]byte{0x00, 0x5A, 0, 0, 0, 0, 0, 0})
	}()

	cfg := ProxyConfig{Kind: ProxySOCKS4, Address: ln.Addr().String()}
	conn, err := dialSOCKS4("tcp", cfg, "10.0.0.1:21")
	require.NoError(t, err)
	defer conn.Close()
}

func TestDialSOCKS4RejectedByProxy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req := make([]byte, 9)
		_, _ = readFull(conn, req)
		_, _ = conn.Write([]byte{0x00, 0x5B, 0, 0, 0, 0, 0, 0})
	}()

	cfg := ProxyConfig{Kind: ProxySOCKS4, Address: ln.Addr().String()}
	_, err = dialSOCKS4("tcp", cfg, "10.0.0.1:21")
	require.Error(t, err)
}

func TestDialSOCKS4AUsesHostname(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	gotHost := make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		head := make([]byte, 9)
		_, _ = readFull(conn, head)

		var host []byte
		for {
			b, err := br.ReadByte()
			if err != nil || b == 0 {
				break
			}
			host = append(host, b)
		}

		gotHost <- string(host)
		_, _ = conn.Write([]byte{0x00, 0x5A, 0, 0, 0, 0, 0, 0})
	}()

	cfg := ProxyConfig{Kind: ProxySOCKS4A, Address: ln.Addr().String()}
	conn, err := dialSOCKS4("tcp", cfg, "ftp.example.com:21")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "ftp.example.com", <-gotHost)
}

func TestDialThroughProxyNoneDialsDirect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := dialThroughProxy("tcp", ln.Addr().String(), ProxyConfig{Kind: ProxyNone})
	require.NoError(t, err)
	conn.Close()
}

func TestDialHTTPConnectSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}

		_, _ = conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	}()

	cfg := ProxyConfig{Kind: ProxyHTTPConnect, Address: ln.Addr().String()}
	conn, err := dialHTTPConnect("tcp", cfg, "ftp.example.com:21")
	require.NoError(t, err)
	conn.Close()
}

func TestDialHTTPConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}

		_, _ = conn.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
	}()

	cfg := ProxyConfig{Kind: ProxyHTTPConnect, Address: ln.Addr().String()}
	_, err = dialHTTPConnect("tcp", cfg, "ftp.example.com:21")
	require.Error(t, err)
}
