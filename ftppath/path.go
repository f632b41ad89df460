package ftppath

import "strings"

// Join appends name to dir using this type's separator, taking care not to
// double up a trailing separator. Matches the teacher's absPath splicing,
// generalised from a hard-coded "/" to the type-parameterised separator.
func (t Type) Join(dir, name string) string {
	if dir == "" {
		return name
	}

	if name == "" {
		return dir
	}

	sep := t.Separator()
	if strings.HasSuffix(dir, string(sep)) {
		return dir + name
	}

	return dir + string(sep) + name
}

// Split divides path into its parent directory and final element, the way a
// LIST line's directory column plus name column recombine into a full path.
// The parent never carries a trailing separator unless it is the root.
func (t Type) Split(path string) (dir, name string) {
	sep := t.Separator()
	idx := strings.LastIndexByte(path, sep)
	if idx < 0 {
		return "", path
	}

	dir = path[:idx]
	if dir == "" {
		dir = string(sep)
	}

	return dir, path[idx+1:]
}

// Name returns the final path element, as used to key an opened-file
// registration or a listing-snapshot item.
func (t Type) Name(path string) string {
	_, name := t.Split(path)
	return name
}

// Parent returns path's containing directory.
func (t Type) Parent(path string) string {
	dir, _ := t.Split(path)
	return dir
}

// fold applies the type's case rule so two names can be compared without
// the caller re-deriving CaseSensitive at every call site.
func (t Type) fold(s string) string {
	if t.CaseSensitive() {
		return s
	}

	return strings.ToUpper(s)
}

// Equal reports whether a and b name the same path under this type's case
// rule. Paths are opaque byte strings to the core; this is the only
// equality the worker, the opened-files registry and the upload cache are
// allowed to use.
func (t Type) Equal(a, b string) bool {
	return t.fold(a) == t.fold(b)
}

// Compare orders a and b the way a listing snapshot sorts its items: by
// name, using the type's case rule, falling back to a byte-wise compare to
// keep the order total and stable.
func (t Type) Compare(a, b string) int {
	fa, fb := t.fold(a), t.fold(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// HasPrefix reports whether path is path prefix itself or lies under it,
// respecting the type's case rule and requiring a separator (or exact
// match) at the boundary so "/home/bob" is not considered a prefix-match
// under "/home/b".
func (t Type) HasPrefix(path, prefix string) bool {
	if t.Equal(path, prefix) {
		return true
	}

	fp, fpre := t.fold(path), t.fold(prefix)
	if !strings.HasPrefix(fp, fpre) {
		return false
	}

	if strings.HasSuffix(fpre, string(t.Separator())) {
		return true
	}

	return len(fp) > len(fpre) && fp[len(fpre)] == t.Separator()
}
