// Package uploadcache implements the per-session upload listing cache
// (spec.md §4.5): a coherent snapshot of each visited server directory,
// mutated speculatively by worker-reported changes ahead of the next real
// LIST, with concurrent listing-in-progress states, per-path waiter lists
// and obsolescence/invalidation rules. It is grounded on the teacher's
// mutex-guarded accessor idiom (client_handler.go's transferMu/paramsMutex:
// a plain sync.Mutex with a field comment naming what it protects), since
// no example repo ships an in-memory directory-listing cache with the same
// waiter/pending-log shape.
package uploadcache

import (
	"time"

	"github.com/fclairamb/ftpclientcore/ftppath"
	"github.com/fclairamb/ftpclientcore/listing"
)

// State is a listing snapshot's lifecycle, per spec.md §3.
type State int

const (
	Ready State = iota
	InProgress
	InProgressButObsolete
	InProgressButMayBeOutdated
	NotAccessible
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case InProgressButObsolete:
		return "in-progress-but-obsolete"
	case InProgressButMayBeOutdated:
		return "in-progress-but-may-be-outdated"
	case NotAccessible:
		return "not-accessible"
	default:
		return "ready"
	}
}

// ChangeKind is the type of a pending mutation recorded against an
// in-progress snapshot (spec.md §3's "change record").
type ChangeKind int

const (
	ChangeCreateDir ChangeKind = iota
	ChangeDelete
	ChangeStoreFile
	ChangeFileUploaded
	ChangeRename
	ChangeUnknown
)

// Change is one pending mutation waiting to be replayed onto a snapshot
// once its listing finishes.
type Change struct {
	Kind       ChangeKind
	Name       string
	NewName    string // only for ChangeRename
	Size       int64
	SizeKnown  bool
	ChangeTime time.Time
}

// Waiter is a worker blocked on a listing that is still in progress. It is
// deliberately opaque to this package: the worker package owns how
// Notify's argument is interpreted.
type Waiter struct {
	WorkerUID uint64
	Notify    func(result WaiterResult)
}

// WaiterResult is what a drained waiter receives, matching get-listing's
// out-parameters (spec.md §4.5).
type WaiterResult struct {
	ListingInProgress bool
	NotAccessible     bool
	Item              listing.Item
	ItemFound         bool
}

// Snapshot is one cached directory listing (spec.md §3's "listing
// snapshot").
type Snapshot struct {
	Path     string
	PathType ftppath.Type
	State    State

	// Items holds a parsed listing's items in the order the server listed
	// them; they are not sorted. An item added by a change report is
	// inserted before the first item that compares greater under
	// PathType's case rule. Lookups scan the slice linearly.
	Items []listing.Item

	PendingChanges []Change

	ListingStartTime time.Time
	LatestChangeTime time.Time

	Waiters []Waiter

	FromPanel bool
}

// findItem returns the index of the item named name, or -1, using the
// snapshot's path-type case rule for comparison (spec.md §4.5's "sort
// order is consistent with FTPIsCaseSensitive" invariant).
func (s *Snapshot) findItem(name string) int {
	for i := range s.Items {
		if s.PathType.Equal(s.Items[i].Name, name) {
			return i
		}
	}

	return -1
}

// insertSorted inserts or replaces item in Items, keeping the slice sorted
// by PathType's comparison rule.
func (s *Snapshot) insertSorted(item listing.Item) {
	if idx := s.findItem(item.Name); idx >= 0 {
		s.Items[idx] = item

		return
	}

	i := 0
	for i < len(s.Items) && s.PathType.Compare(s.Items[i].Name, item.Name) < 0 {
		i++
	}

	s.Items = append(s.Items, listing.Item{})
	copy(s.Items[i+1:], s.Items[i:])
	s.Items[i] = item
}

// removeItem deletes the item named name, if present.
func (s *Snapshot) removeItem(name string) {
	idx := s.findItem(name)
	if idx < 0 {
		return
	}

	s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
}

// drainWaiters notifies and clears every waiter, per spec.md §4.5's
// "waiter list is drained exactly once per listing attempt" invariant.
func (s *Snapshot) drainWaiters(result WaiterResult) {
	for _, w := range s.Waiters {
		if w.Notify != nil {
			w.Notify(result)
		}
	}

	s.Waiters = nil
}

// applyChange mutates Items in place for one change record, per spec.md
// §4.5's change-report semantics. Renames are handled by the caller
// (Cache.ReportRename), since the spec calls for invalidating the whole
// directory rather than merging a rename in place.
func (s *Snapshot) applyChange(c Change) {
	switch c.Kind {
	case ChangeCreateDir:
		s.insertSorted(listing.Item{Name: c.Name, Kind: listing.KindDirectory})
	case ChangeDelete:
		s.removeItem(c.Name)
	case ChangeStoreFile:
		item := listing.Item{Name: c.Name, Kind: listing.KindFile}
		if c.SizeKnown {
			item.Size = c.Size
		} else {
			item.SizeUnknown = true
		}

		s.insertSorted(item)
	case ChangeFileUploaded:
		item := listing.Item{Name: c.Name, Kind: listing.KindFile, Size: c.Size}
		s.insertSorted(item)
	}

	if c.ChangeTime.After(s.LatestChangeTime) {
		s.LatestChangeTime = c.ChangeTime
	}
}
