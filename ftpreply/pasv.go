package ftpreply

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// pasvQuadRegex matches the "(h1,h2,h3,h4,p1,p2)" address a PASV reply
// embeds somewhere in its text, the mirror of the teacher's PORT-argument
// regex in transfer_active.go — there the server parsed a client-sent PORT
// argument; here the client parses a server-sent PASV reply.
var pasvQuadRegex = regexp.MustCompile(`\(([0-9]{1,3}),([0-9]{1,3}),([0-9]{1,3}),([0-9]{1,3}),([0-9]{1,3}),([0-9]{1,3})\)`)

// ParsePassive extracts the IP and port a "227 Entering Passive Mode
// (h1,h2,h3,h4,p1,p2)" reply advertises.
func ParsePassive(text string) (net.IP, int, error) {
	m := pasvQuadRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, 0, fmt.Errorf("ftpreply: no address quad in PASV reply %q", text)
	}

	octets := make([]byte, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 255 {
			return nil, 0, fmt.Errorf("ftpreply: invalid octet in PASV reply %q", text)
		}
		octets[i] = byte(v)
	}

	p1, err1 := strconv.Atoi(m[5])
	p2, err2 := strconv.Atoi(m[6])
	if err1 != nil || err2 != nil || p1 > 255 || p2 > 255 {
		return nil, 0, fmt.Errorf("ftpreply: invalid port in PASV reply %q", text)
	}

	return net.IP(octets), p1*256 + p2, nil
}

// EncodePortArg renders the "h1,h2,h3,h4,p1,p2" argument this engine sends
// with its own PORT command when listening locally for an active-mode data
// connection — the same quad arithmetic the teacher used to *advertise* a
// PASV address, now used to advertise a PORT address instead.
func EncodePortArg(ip net.IP, port int) (string, error) {
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("ftpreply: PORT requires an IPv4 address, got %v", ip)
	}

	p1 := port / 256
	p2 := port % 256

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", v4[0], v4[1], v4[2], v4[3], p1, p2), nil
}

// extPasvPortRegex matches the "(|||port|)" form of an EPSV reply.
var extPasvPortRegex = regexp.MustCompile(`\(\|\|\|([0-9]+)\|\)`)

// ParseExtendedPassive extracts the port an "229 Entering Extended Passive
// Mode (|||port|)" reply advertises. The IP is implicitly the one already
// in use for the control connection, per RFC 2428.
func ParseExtendedPassive(text string) (int, error) {
	m := extPasvPortRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("ftpreply: no port in EPSV reply %q", text)
	}

	port, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("ftpreply: invalid port in EPSV reply %q", text)
	}

	return port, nil
}

// EncodeEPRTArg renders the "|1|addr|port|" (IPv4) or "|2|addr|port|"
// (IPv6) argument for an outgoing EPRT command, per RFC 2428.
func EncodeEPRTArg(ip net.IP, port int) string {
	proto := "1"
	addr := ip.String()
	if ip.To4() == nil {
		proto = "2"
	}

	return fmt.Sprintf("|%s|%s|%d|", proto, addr, port)
}
