package ftpclientcore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fclairamb/ftpclientcore/listing"
)

func TestServerTypeCacheMissReturnsFalse(t *testing.T) {
	c := NewServerTypeCache()
	_, ok := c.Get(Identity{User: "bob", Host: "ftp.example.com", Port: 21})
	assert.False(t, ok)
}

func TestServerTypeCacheRememberThenGet(t *testing.T) {
	c := NewServerTypeCache()
	id := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	st := listing.ServerType{Name: "unix"}

	c.Remember(id, st)

	got, ok := c.Get(id)
	assert.True(t, ok)
	assert.Equal(t, "unix", got.Name)
}

func TestServerTypeCacheHonorsIdentityEquivalence(t *testing.T) {
	c := NewServerTypeCache()
	c.Remember(Identity{User: "anonymous", Host: "FTP.Example.com", Port: 21}, listing.ServerType{Name: "unix"})

	got, ok := c.Get(Identity{User: "", Host: "ftp.example.com", Port: 21})
	assert.True(t, ok)
	assert.Equal(t, "unix", got.Name)
}

func TestServerTypeCacheForgetRemovesEntry(t *testing.T) {
	c := NewServerTypeCache()
	id := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	c.Remember(id, listing.ServerType{Name: "unix"})

	c.Forget(id)

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestServerTypeCacheRememberReplacesExisting(t *testing.T) {
	c := NewServerTypeCache()
	id := Identity{User: "bob", Host: "ftp.example.com", Port: 21}
	c.Remember(id, listing.ServerType{Name: "unix"})
	c.Remember(id, listing.ServerType{Name: "vms"})

	got, ok := c.Get(id)
	assert.True(t, ok)
	assert.Equal(t, "vms", got.Name)
}
