// Package ftppath manipulates remote FTP paths as opaque byte strings,
// parameterised by the path type a server's SYST/welcome banter resolves
// to. No function here ever touches the local filesystem or path/filepath;
// the separator, case rule and root syntax of a *remote* path depend on the
// server's operating system, not on the one this engine runs on.
package ftppath

// Type tags a remote path according to the server operating system that
// produced it. The zero value is Unknown.
type Type int

const (
	Unknown Type = iota
	Empty
	Unix
	Windows
	Netware
	OS2
	OpenVMS
	MVS
	IBMzVM
	AS400
	Tandem
)

// String renders the type the way session logs and server-type files name it.
func (t Type) String() string {
	switch t {
	case Empty:
		return "empty"
	case Unix:
		return "unix"
	case Windows:
		return "windows"
	case Netware:
		return "netware"
	case OS2:
		return "os2"
	case OpenVMS:
		return "openvms"
	case MVS:
		return "mvs"
	case IBMzVM:
		return "ibm_z_vm"
	case AS400:
		return "as400"
	case Tandem:
		return "tandem"
	default:
		return "unknown"
	}
}

// ParseType recovers a Type from its String() form, the way a persisted
// server-type file round-trips the tag. An unrecognised name is Unknown.
func ParseType(name string) Type {
	switch name {
	case "empty":
		return Empty
	case "unix":
		return Unix
	case "windows":
		return Windows
	case "netware":
		return Netware
	case "os2":
		return OS2
	case "openvms":
		return OpenVMS
	case "mvs":
		return MVS
	case "ibm_z_vm":
		return IBMzVM
	case "as400":
		return AS400
	case "tandem":
		return Tandem
	default:
		return Unknown
	}
}

// CaseSensitive reports whether two names that differ only in case name
// different files on this path type. Windows, OS2 and Netware are
// case-preserving but not case-sensitive; OpenVMS/MVS/IBM z/VM upper-case
// everything; the rest default to case-sensitive like the common Unix case.
func (t Type) CaseSensitive() bool {
	switch t {
	case Windows, OS2, Netware, OpenVMS, MVS, IBMzVM:
		return false
	default:
		return true
	}
}

// Separator returns the path element separator this type's servers use in
// directory listings and CWD arguments. OpenVMS and MVS don't use a byte
// separator in the Unix sense (they're bracket/qualifier syntaxes); this
// returns '/' for them, and Join/Split use that '/' as-is.
func (t Type) Separator() byte {
	switch t {
	case Windows:
		return '\\'
	default:
		return '/'
	}
}

// RootPath returns the canonical root for this type, as sent in a PWD reply
// or used as the base of an absolute path.
func (t Type) RootPath() string {
	switch t {
	case Windows:
		return `\`
	default:
		return "/"
	}
}

// IsAbsolute reports whether path is already rooted for this type.
func (t Type) IsAbsolute(path string) bool {
	if path == "" {
		return false
	}

	switch t {
	case Windows:
		if len(path) >= 1 && path[0] == '\\' {
			return true
		}
		return len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
	case OpenVMS:
		return len(path) > 0 && path[0] == '['
	default:
		return path[0] == '/'
	}
}
