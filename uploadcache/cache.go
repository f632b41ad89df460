package uploadcache

import (
	"strings"
	"sync"
	"time"

	"github.com/fclairamb/ftpclientcore/ftppath"
	"github.com/fclairamb/ftpclientcore/listing"
)

// lruSize is the "small LRU of up-to-four most-recent hit indices" spec.md
// §4.5 calls for to accelerate the common repeated-lookup case.
const lruSize = 4

// key is the map key a (path, pathType) pair folds to, using the path
// type's own case rule so lookups never depend on caller casing.
type key struct {
	pathType ftppath.Type
	folded   string
}

func newKey(path string, pathType ftppath.Type) key {
	folded := path
	if !pathType.CaseSensitive() {
		folded = strings.ToUpper(path)
	}

	return key{pathType: pathType, folded: folded}
}

// Cache is one session's upload listing cache: a map of directory
// snapshots keyed by path, with a small LRU of recent hits. It is guarded
// by a single mutex, matching the teacher's "one mutex per protected
// resource, named by what it protects" idiom.
type Cache struct {
	mu sync.Mutex // protects entries and recent

	entries map[key]*Snapshot
	recent  []key // most-recently-hit keys, front = most recent, capped at lruSize
}

// New creates an empty upload listing cache for one session.
func New() *Cache {
	return &Cache{entries: make(map[key]*Snapshot)}
}

func (c *Cache) touch(k key) {
	for i, rk := range c.recent {
		if rk == k {
			c.recent = append(c.recent[:i], c.recent[i+1:]...)

			break
		}
	}

	c.recent = append([]key{k}, c.recent...)
	if len(c.recent) > lruSize {
		c.recent = c.recent[:lruSize]
	}
}

// lookup finds path's snapshot and records it as the most-recent hit. The
// backing store is a Go map (already O(1)), so the LRU here exists only to
// preserve spec.md §4.5's "small LRU of up-to-four most-recent hit indices"
// shape rather than to speed anything up — kept for fidelity to an
// implementation where the backing store is a linear scan.
func (c *Cache) lookup(k key) (*Snapshot, bool) {
	s, ok := c.entries[k]
	if ok {
		c.touch(k)
	}

	return s, ok
}

// AddOrUpdateListing parses text through the listing package's rules and
// installs it as path's snapshot if newer than what is cached, per spec.md
// §4.5. If the cached snapshot is in-progress, the new listing becomes a
// preview: the pending-changes log is replayed onto it and its state moves
// to in-progress-but-obsolete rather than replacing the in-progress entry
// outright.
func (c *Cache) AddOrUpdateListing(
	path string,
	pathType ftppath.Type,
	rules []listing.Rule,
	text string,
	today time.Time,
	listingStartTime time.Time,
	onlyUpdate bool,
	incomplete bool,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parsed, err := listing.ParseStrict(rules, text, today, incomplete)
	if err != nil {
		return err
	}

	k := newKey(path, pathType)
	existing, ok := c.entries[k]

	if ok && existing.State == InProgress {
		preview := &Snapshot{
			Path:             path,
			PathType:         pathType,
			State:            InProgressButObsolete,
			Items:            parsed.Items,
			ListingStartTime: listingStartTime,
			Waiters:          existing.Waiters,
		}

		for _, ch := range existing.PendingChanges {
			preview.applyChange(ch)
		}

		existing.Waiters = nil
		c.entries[k] = preview
		c.touch(k)

		return nil
	}

	if ok && onlyUpdate && !existing.ListingStartTime.Before(listingStartTime) {
		return nil
	}

	c.entries[k] = &Snapshot{
		Path:             path,
		PathType:         pathType,
		State:            Ready,
		Items:            parsed.Items,
		ListingStartTime: listingStartTime,
	}
	c.touch(k)

	return nil
}

// GetListing implements get-listing's cache-hit semantics (spec.md §4.5).
// On a miss it installs a new in-progress placeholder and reports
// getListing=true so the caller knows to go fetch the real listing.
func (c *Cache) GetListing(path string, pathType ftppath.Type, name string, waiter Waiter) (
	listingInProgress bool, notAccessible bool, getListing bool, item listing.Item, itemFound bool,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)

	s, ok := c.lookup(k)
	if !ok {
		c.entries[k] = &Snapshot{
			Path:             path,
			PathType:         pathType,
			State:            InProgress,
			ListingStartTime: time.Now(),
		}
		c.touch(k)

		return false, false, true, listing.Item{}, false
	}

	switch s.State {
	case Ready, InProgressButObsolete:
		idx := s.findItem(name)
		if idx < 0 {
			return false, false, false, listing.Item{}, false
		}

		return false, false, false, s.Items[idx], true
	case InProgress, InProgressButMayBeOutdated:
		s.Waiters = append(s.Waiters, waiter)

		return true, false, false, listing.Item{}, false
	case NotAccessible:
		return false, true, false, listing.Item{}, false
	default:
		return false, false, false, listing.Item{}, false
	}
}

// ListingFailed reports that an attempted listing-finished never happened
// because the fetch itself failed, per spec.md §4.5.
func (c *Cache) ListingFailed(path string, pathType ftppath.Type, notAccessible bool) (firstWaiter *Waiter, okErrorIgnored bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)

	s, ok := c.entries[k]
	if !ok {
		return nil, false
	}

	if s.State == InProgressButObsolete {
		// Benign: we already have the obsolete-but-complete preview.
		return nil, true
	}

	var first *Waiter
	if len(s.Waiters) > 0 {
		w := s.Waiters[0]
		first = &w
	}

	result := WaiterResult{NotAccessible: notAccessible}
	s.drainWaiters(result)

	if notAccessible {
		s.State = NotAccessible
	} else {
		delete(c.entries, k)
	}

	return first, false
}

// ListingFinished commits a real listing fetch, per spec.md §4.5: parse
// failure marks the entry not-accessible (permanent for this listing
// text); a successful parse replaces Items and replays the pending-change
// log, then drains waiters.
func (c *Cache) ListingFinished(path string, pathType ftppath.Type, rules []listing.Rule, text string, today time.Time, incomplete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)

	s, ok := c.entries[k]
	if !ok {
		return nil
	}

	parsed, err := listing.ParseStrict(rules, text, today, incomplete)
	if err != nil {
		s.State = NotAccessible
		s.drainWaiters(WaiterResult{NotAccessible: true})

		return err
	}

	s.Items = parsed.Items
	s.State = Ready

	for _, ch := range s.PendingChanges {
		s.applyChange(ch)
	}

	s.PendingChanges = nil

	s.drainWaiters(WaiterResult{})

	return nil
}

// report applies or defers one change record, per spec.md §4.5's
// per-state change-report rules: mutated in place on ready/obsolete,
// appended to the pending log on in-progress, dropped on
// may-be-outdated/not-accessible.
func (c *Cache) report(path string, pathType ftppath.Type, ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)

	s, ok := c.entries[k]
	if !ok {
		return
	}

	switch s.State {
	case Ready, InProgressButObsolete:
		s.applyChange(ch)
	case InProgress:
		s.PendingChanges = append(s.PendingChanges, ch)
	default:
		// in-progress-but-may-be-outdated, not-accessible: dropped.
	}
}

// ReportCreateDir records a directory creation seen by a worker.
func (c *Cache) ReportCreateDir(path string, pathType ftppath.Type, name string, when time.Time) {
	c.report(path, pathType, Change{Kind: ChangeCreateDir, Name: name, ChangeTime: when})
}

// ReportDelete records a deletion seen by a worker.
func (c *Cache) ReportDelete(path string, pathType ftppath.Type, name string, when time.Time) {
	c.report(path, pathType, Change{Kind: ChangeDelete, Name: name, ChangeTime: when})
}

// ReportRename invalidates the whole directory listing rather than merging
// the rename in place, per spec.md §4.5's deliberate simplification (target
// semantics are complex across path types).
func (c *Cache) ReportRename(path string, pathType ftppath.Type, when time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)
	delete(c.entries, k)
}

// ReportStoreFile records an in-flight STOR seen by a worker, before the
// upload completes.
func (c *Cache) ReportStoreFile(path string, pathType ftppath.Type, name string, size int64, sizeKnown bool, when time.Time) {
	c.report(path, pathType, Change{Kind: ChangeStoreFile, Name: name, Size: size, SizeKnown: sizeKnown, ChangeTime: when})
}

// ReportFileUploaded records a completed upload, replacing the
// in-progress size estimate with the final byte count.
func (c *Cache) ReportFileUploaded(path string, pathType ftppath.Type, name string, size int64, when time.Time) {
	c.report(path, pathType, Change{Kind: ChangeFileUploaded, Name: name, Size: size, SizeKnown: true, ChangeTime: when})
}

// ReportUnknownChange records a change whose kind this engine did not
// recognise; the snapshot is conservatively invalidated instead of risking
// a stale entry.
func (c *Cache) ReportUnknownChange(path string, pathType ftppath.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := newKey(path, pathType)
	delete(c.entries, k)
}
