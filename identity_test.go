package ftpclientcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityEqualIgnoresHostCase(t *testing.T) {
	a := Identity{User: "bob", Host: "FTP.Example.com", Port: 21}
	b := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	assert.True(t, a.Equal(b))
}

func TestIdentityEqualIsUserCaseSensitive(t *testing.T) {
	a := Identity{User: "Bob", Host: "ftp.example.com", Port: 21}
	b := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	assert.False(t, a.Equal(b))
}

func TestIdentityAnonymousNormalizesToNoUser(t *testing.T) {
	a := Identity{User: "anonymous", Host: "ftp.example.com", Port: 21}
	b := Identity{User: "", Host: "ftp.example.com", Port: 21}
	assert.True(t, a.Equal(b))
}

func TestIdentityPortIsNumeric(t *testing.T) {
	a := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	b := Identity{User: "bob", Host: "ftp.example.com", Port: 2121}
	assert.False(t, a.Equal(b))
}

func TestIdentityKeyMatchesEqual(t *testing.T) {
	a := Identity{User: "anonymous", Host: "FTP.example.com", Port: 21}
	b := Identity{User: "", Host: "ftp.example.com", Port: 21}
	assert.Equal(t, a.key(), b.key())
}
