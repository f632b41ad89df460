package dataconn

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// dialSOCKS4 implements the SOCKS4/4A CONNECT handshake by hand: no pack
// example ships a SOCKS4 client dependency (golang.org/x/net/proxy only
// speaks SOCKS5), and the wire format is a dozen bytes, not worth a new
// dependency.
func dialSOCKS4(network string, cfg ProxyConfig, target string) (net.Conn, error) {
	conn, err := net.Dial(network, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dataconn: dialing SOCKS4 proxy: %w", err)
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dataconn: invalid SOCKS4 target %q: %w", target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dataconn: invalid SOCKS4 target port %q: %w", portStr, err)
	}

	req := []byte{0x04, 0x01} // VN=4, CD=1 (CONNECT)
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, uint16(port))
	req = append(req, portBuf...)

	ip := net.ParseIP(host)
	socks4a := cfg.Kind == ProxySOCKS4A && (ip == nil || ip.To4() == nil)

	if socks4a {
		req = append(req, 0, 0, 0, 1) // sentinel 0.0.0.x per RFC for 4A
	} else {
		v4 := ip.To4()
		if v4 == nil {
			conn.Close()
			return nil, fmt.Errorf("dataconn: SOCKS4 requires an IPv4 address, got %q", host)
		}
		req = append(req, v4...)
	}

	req = append(req, cfg.Username...)
	req = append(req, 0)

	if socks4a {
		req = append(req, host...)
		req = append(req, 0)
	}

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dataconn: SOCKS4 request: %w", err)
	}

	resp := make([]byte, 8)
	if _, err := readFull(conn, resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dataconn: SOCKS4 response: %w", err)
	}

	if resp[0] != 0x00 || resp[1] != 0x5A {
		conn.Close()
		return nil, fmt.Errorf("dataconn: SOCKS4 proxy rejected connection, code %#x", resp[1])
	}

	return conn, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
