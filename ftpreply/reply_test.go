package ftpreply

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSingleLineReply(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("226 Transfer complete.\r\n"))

	reply, err := Read(br)
	require.NoError(t, err)
	assert.Equal(t, 226, reply.Code)
	assert.Equal(t, 2, reply.Class())
	assert.True(t, reply.Positive())
	assert.Equal(t, "Transfer complete.", reply.Message())
}

func TestReadMultiLineReply(t *testing.T) {
	raw := "211-Features:\r\n" +
		" REST STREAM\r\n" +
		" MLST type*;size*;\r\n" +
		"211 End\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	reply, err := Read(br)
	require.NoError(t, err)
	assert.Equal(t, 211, reply.Code)
	assert.Equal(t, []string{"Features:", " REST STREAM", " MLST type*;size*;", "End"}, reply.Lines)
}

func TestReadAdversarialDigitLookingContinuation(t *testing.T) {
	// A continuation line that itself looks like a reply line, but isn't
	// the real terminator because the code doesn't match.
	raw := "150-Here comes the directory listing.\r\n" +
		"200 this is not the end\r\n" +
		"150 Here it ends.\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	reply, err := Read(br)
	require.NoError(t, err)
	assert.Equal(t, 150, reply.Code)
	assert.Len(t, reply.Lines, 3)
}

func TestReadMalformedReply(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("bad\r\n"))
	_, err := Read(br)
	assert.Error(t, err)
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, "NOOP\r\n", EncodeCommand("NOOP"))
	assert.Equal(t, "RETR file.txt\r\n", EncodeCommand("RETR", "file.txt"))
	assert.Equal(t, "PORT 127,0,0,1,123,45\r\n", EncodeCommand("PORT", "127,0,0,1,123,45"))
}

func TestParsePassive(t *testing.T) {
	ip, port, err := ParsePassive("227 Entering Passive Mode (127,0,0,1,123,45).")
	require.NoError(t, err)
	assert.Equal(t, net.IPv4(127, 0, 0, 1).To4(), ip)
	assert.Equal(t, 123*256+45, port)
}

func TestParsePassiveNoMatch(t *testing.T) {
	_, _, err := ParsePassive("500 Syntax error")
	assert.Error(t, err)
}

func TestEncodePortArgRoundTrips(t *testing.T) {
	arg, err := EncodePortArg(net.IPv4(127, 0, 0, 1), 123*256+45)
	require.NoError(t, err)
	assert.Equal(t, "127,0,0,1,123,45", arg)

	ip, port, err := ParsePassive("(" + arg + ")")
	require.NoError(t, err)
	assert.Equal(t, net.IPv4(127, 0, 0, 1).To4(), ip)
	assert.Equal(t, 123*256+45, port)
}

func TestExtendedPassive(t *testing.T) {
	port, err := ParseExtendedPassive("229 Entering Extended Passive Mode (|||31746|)")
	require.NoError(t, err)
	assert.Equal(t, 31746, port)
}

func TestEncodeEPRTArg(t *testing.T) {
	assert.Equal(t, "|1|127.0.0.1|123|", EncodeEPRTArg(net.IPv4(127, 0, 0, 1), 123))
}
