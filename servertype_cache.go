package ftpclientcore

import (
	"sync"

	"github.com/fclairamb/ftpclientcore/listing"
)

// ServerTypeCache remembers, for a given session identity, the server
// type autodetection already settled on, per SPEC_FULL.md §3's
// "server-type caching across sessions to the same host profile"
// (grounded on original_source/'s fs2.cpp): a second session to the same
// (user,host,port) profile within the process lifetime skips
// autodetection entirely and starts directly from the cached type's
// rules, per spec.md §4.6 ("the winning type name is remembered at the
// session").
//
// This is process-wide, not per-session, matching §9's "Global mutable
// state... preserve them as such but make them explicit context objects
// constructed at session-manager start": a Manager owns exactly one of
// these as its ServerTypes field. Sessions hold no reference to it;
// the caller reads it with Get and sets Session.ServerType itself.
type ServerTypeCache struct {
	mu    sync.Mutex
	byKey map[identityKey]listing.ServerType
}

// NewServerTypeCache creates an empty cache.
func NewServerTypeCache() *ServerTypeCache {
	return &ServerTypeCache{byKey: make(map[identityKey]listing.ServerType)}
}

// Get returns the remembered server type for id, if any.
func (c *ServerTypeCache) Get(id Identity) (listing.ServerType, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byKey[id.key()]

	return st, ok
}

// Remember records the server type that won autodetection for id. A
// later Remember for the same id replaces the prior entry: the "welcome
// re-evaluation on reconnect" rule (SPEC_FULL.md §3, fs3.cpp) only
// re-runs autodetection when the cached type's rules fail to parse the
// next listing, but once it does, the fresh winner replaces the old one.
func (c *ServerTypeCache) Remember(id Identity, st listing.ServerType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byKey[id.key()] = st
}

// Forget drops id's cached server type, used when a reconnect's
// re-evaluation finds the cached type no longer fits (its rules fail to
// parse the next listing).
func (c *ServerTypeCache) Forget(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byKey, id.key())
}
