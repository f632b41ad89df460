// Package queue implements the batch operation queue item (spec.md §3's
// "queue item" and §4.7's boundary): the unit of work a worker pulls,
// processes, and reports progress/outcome against. It is grounded on the
// teacher's commandsMap/CommandDescription dispatch table (server.go): a
// map from a discrete type tag to a small descriptor struct naming that
// type's fixed properties, the same shape used here for Type's
// TransferRelated/Explore/Upload flags.
package queue

import (
	"time"

	"github.com/fclairamb/ftpclientcore/ftppath"
)

// Type is the kind of operation one queue item represents.
type Type int

const (
	ExploreDir Type = iota
	CopyFile
	MoveFile
	UploadCopyFile
	UploadMoveFile
	UploadCopyExplore
	UploadMoveExplore
	ChAttr
)

func (t Type) String() string {
	switch t {
	case ExploreDir:
		return "explore-dir"
	case CopyFile:
		return "copy-file"
	case MoveFile:
		return "move-file"
	case UploadCopyFile:
		return "upload-copy-file"
	case UploadMoveFile:
		return "upload-move-file"
	case UploadCopyExplore:
		return "upload-copy-explore"
	case UploadMoveExplore:
		return "upload-move-explore"
	case ChAttr:
		return "chattr"
	default:
		return "unknown"
	}
}

// TypeDescription names a Type's fixed properties, the way the teacher's
// CommandDescription names a command's fixed properties rather than
// scattering "if type == X" checks across the codebase.
type TypeDescription struct {
	// TransferRelated is true for item types that copy or move a single
	// file's bytes over a data connection (explore items, which also use
	// one for the listing, are not TransferRelated).
	TransferRelated bool
	// Upload is true for item types whose source is local and target is
	// the remote server (the "upload-*" family).
	Upload bool
	// Explore is true for item types that list a directory rather than
	// transfer a single file.
	Explore bool
	// Move is true for item types that delete the source after a
	// successful transfer.
	Move bool
}

// typesMap mirrors the teacher's commandsMap: shared, read-only metadata
// keyed by the discrete type tag.
var typesMap = map[Type]TypeDescription{ //nolint:gochecknoglobals
	ExploreDir:        {Explore: true},
	CopyFile:          {TransferRelated: true},
	MoveFile:          {TransferRelated: true, Move: true},
	UploadCopyFile:    {TransferRelated: true, Upload: true},
	UploadMoveFile:    {TransferRelated: true, Upload: true, Move: true},
	UploadCopyExplore: {Upload: true, Explore: true},
	UploadMoveExplore: {Upload: true, Explore: true, Move: true},
	ChAttr:            {},
}

// Describe returns t's fixed properties.
func Describe(t Type) TypeDescription { return typesMap[t] }

// State is a queue item's lifecycle, per spec.md §3.
type State int

const (
	Waiting State = iota
	Processing
	Done
	Skipped
	Failed
	UserInputNeeded
)

func (s State) String() string {
	switch s {
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case UserInputNeeded:
		return "user-input-needed"
	default:
		return "waiting"
	}
}

// ForcedAction overrides the default overwrite-or-resume decision for one
// item, typically set by a prior user prompt.
type ForcedAction int

const (
	ForcedNone ForcedAction = iota
	ForcedOverwrite
	ForcedResume
	ForcedSkip
)

// TargetFileState records what this engine knows about the target file's
// on-disk/on-server state as the transfer progresses.
type TargetFileState int

const (
	TargetUnknown TargetFileState = iota
	TargetTransferred
	TargetResumed
)

// Item is one unit of batch work, per spec.md §3's "queue item".
type Item struct {
	ID   uint64
	Type Type

	State State

	LastProblemCode int
	LastOSError     error

	SourcePath string
	SourceName string
	TargetPath string
	TargetName string
	PathType   ftppath.Type

	Size          int64
	SizeIsInBytes bool

	ASCIITransfer bool

	ForcedAction ForcedAction
	TargetState  TargetFileState

	DatedField time.Time
}

// transitions is the set of state changes this engine permits, mirroring
// the state machine spec.md §4.1 drives: an item can always go back to
// waiting (retry) from processing, but done/skipped/failed are terminal
// except for the user-input-needed detour back to waiting once the user
// answers.
var transitions = map[State]map[State]bool{ //nolint:gochecknoglobals
	Waiting:         {Processing: true},
	Processing:      {Waiting: true, Done: true, Skipped: true, Failed: true, UserInputNeeded: true},
	UserInputNeeded: {Waiting: true, Skipped: true, Failed: true},
	Done:            {},
	Skipped:         {},
	Failed:          {},
}

// CanTransition reports whether moving from to is a legal state change.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// SetState transitions item to state, returning false (and leaving the
// item unchanged) if the transition is illegal.
func (item *Item) SetState(state State) bool {
	if !CanTransition(item.State, state) {
		return false
	}

	item.State = state

	return true
}
