package ftpclientcore

import "strings"

// Identity keys one logical session, per spec.md §3: "A session is keyed
// by (user, host, port). The special user name anonymous is treated as
// 'no user'. Host comparison is case-insensitive; user comparison is
// case-sensitive; port comparison is numeric."
type Identity struct {
	User string
	Host string
	Port int
}

// normalizedUser applies the "anonymous means no user" rule.
func (id Identity) normalizedUser() string {
	if id.User == "anonymous" {
		return ""
	}

	return id.User
}

// Equal reports whether id and other identify the same session, applying
// spec.md §3's comparison rules per field.
func (id Identity) Equal(other Identity) bool {
	return id.normalizedUser() == other.normalizedUser() &&
		strings.EqualFold(id.Host, other.Host) &&
		id.Port == other.Port
}

// key renders a value usable as a map key honoring the same comparison
// rules: host folded to lowercase, user left case-sensitive except for
// the anonymous normalization.
func (id Identity) key() identityKey {
	return identityKey{user: id.normalizedUser(), host: strings.ToLower(id.Host), port: id.Port}
}

// identityKey is the comparable form of Identity suitable as a Go map key.
type identityKey struct {
	user string
	host string
	port int
}
