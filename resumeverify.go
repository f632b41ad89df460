package ftpclientcore

import "bytes"

// ResumeVerifier compares the resume-overlap bytes already on the local
// disk against the same-range bytes the server sent for a resumed
// transfer (spec.md §4.1/§8's testable property: "resume-overlap bytes
// ... are byte-identical between local and remote on a successful
// resume"). It exists as an interface rather than a fixed comparison
// because a driver handling very large files may prefer a cheaper
// rolling checksum over holding the whole overlap in memory twice
// (SPEC_FULL.md §3, grounded on original_source/operats9.cpp).
type ResumeVerifier interface {
	// Verify reports whether local and remote (both len(local) ==
	// len(remote), the negotiated resume-overlap) agree.
	Verify(local, remote []byte) bool
}

// ByteExactResumeVerifier is the default ResumeVerifier: a plain
// byte-for-byte comparison, what spec.md requires absent a driver
// opting into something cheaper.
type ByteExactResumeVerifier struct{}

// Verify implements ResumeVerifier.
func (ByteExactResumeVerifier) Verify(local, remote []byte) bool {
	return bytes.Equal(local, remote)
}
