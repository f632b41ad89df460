package listing

import (
	"fmt"
	"time"
)

// ServerType bundles a name, its autodetect condition and its compiled
// listing rules — the in-memory form of a persisted .str file's autodetect
// and rules sections. The module has no loader for .str files: a
// ServerType is built in memory from a compiled condition and compiled
// rules, and the column-schema and header/version portions of a .str file
// are not read anywhere.
type ServerType struct {
	Name      string
	Condition Condition
	Rules     []Rule
}

// Select implements the autodetection algorithm: try every type whose
// condition evaluates true against welcome/syst, in order; the first one
// whose rules also successfully parse listingText wins. If none of those
// parse, every remaining type (condition false) is tried too, in order.
// Returns the winning type, its parse of listingText, or an error if
// nothing in types can parse it at all.
func Select(types []ServerType, welcome, syst, listingText string, today time.Time) (ServerType, Listing, error) {
	var candidates, rest []ServerType

	for _, st := range types {
		if st.Condition != nil && st.Condition(welcome, syst) {
			candidates = append(candidates, st)
		} else {
			rest = append(rest, st)
		}
	}

	for _, st := range append(candidates, rest...) {
		listing, err := ParseStrict(st.Rules, listingText, today, false)
		if err == nil {
			return st, listing, nil
		}
	}

	return ServerType{}, Listing{}, fmt.Errorf("listing: no server type could parse the listing")
}
