// Package openedfiles serialises concurrent worker operations that target
// the same remote file, the way the teacher's client_handler guarded a
// single transfer with transferMu/paramsMutex — generalised here from one
// mutex per connection into one process-wide table keyed by
// (session, path, name), since many workers across many sessions share it.
package openedfiles

import "sync"

// AccessType is the kind of operation a worker is about to perform against
// a remote file.
type AccessType int

const (
	Read AccessType = iota
	Write
	Delete
	Rename
)

func (a AccessType) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// UID identifies one granted registration, handed back by Open and
// consumed by Close.
type UID uint64

type record struct {
	uid     UID
	session string
	path    string
	name    string
	access  AccessType
}

// conflicts reports whether a and b target the same (session, path, name)
// and clash per spec: they conflict iff the access types differ, or both
// are Write.
func conflicts(a, b *record) bool {
	if a.session != b.session || a.path != b.path || a.name != b.name {
		return false
	}

	return a.access != b.access || (a.access == Write && b.access == Write)
}

// Registry is the process-wide opened-files table. The zero value is not
// usable; construct one with New.
type Registry struct {
	mu       sync.Mutex
	byUID    map[UID]*record
	freelist []*record
	nextUID  UID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byUID: make(map[UID]*record)}
}

// Open requests access to (session, path, name) for the given access type.
// It succeeds (ok=true) and returns a UID to later pass to Close, or fails
// (ok=false) if an existing registration conflicts.
func (r *Registry) Open(session, path, name string, access AccessType) (uid UID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.alloc(session, path, name, access)

	for _, existing := range r.byUID {
		if conflicts(candidate, existing) {
			r.free(candidate)
			return 0, false
		}
	}

	r.nextUID++
	candidate.uid = r.nextUID
	r.byUID[candidate.uid] = candidate

	return candidate.uid, true
}

// Close releases a registration previously granted by Open. Closing an
// unknown or already-closed UID is a no-op, matching the teacher's
// defensive double-close handling on transfer teardown.
func (r *Registry) Close(uid UID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, found := r.byUID[uid]
	if !found {
		return
	}

	delete(r.byUID, uid)
	r.free(rec)
}

// alloc pulls a record from the freelist when one is available, avoiding
// an allocation on the common churn-heavy path (many short-lived opens).
func (r *Registry) alloc(session, path, name string, access AccessType) *record {
	var rec *record
	if n := len(r.freelist); n > 0 {
		rec = r.freelist[n-1]
		r.freelist = r.freelist[:n-1]
	} else {
		rec = &record{}
	}

	rec.session = session
	rec.path = path
	rec.name = name
	rec.access = access

	return rec
}

func (r *Registry) free(rec *record) {
	r.freelist = append(r.freelist, rec)
}
