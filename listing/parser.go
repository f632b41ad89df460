package listing

import (
	"strings"
	"time"
)

// Parse applies rules, in order, to every line of text (a raw LIST/NLST
// response), trying each rule until one matches. today is the reference
// date used for year_or_time and for year-correction. incomplete mirrors
// the data connection's own "listing-incomplete" signal (spec.md §8): when
// true, an unmatched final line is treated as a truncated trailing record
// and dropped rather than reported. A line matching no rule is otherwise
// simply skipped (e.g. a "total 24" header) rather than failing the whole
// listing — callers that need "listing is unparseable" semantics (server
// type autodetection) should call ParseStrict instead.
func Parse(rules []Rule, text string, today time.Time, incomplete bool) Listing {
	listing, _ := parse(rules, text, today, incomplete, false)
	return listing
}

// ParseStrict behaves like Parse but returns an error on the first line
// that matches no rule (other than a permitted truncated trailing line),
// the way server-type autodetection needs to reject a candidate type
// outright rather than silently skip lines.
func ParseStrict(rules []Rule, text string, today time.Time, incomplete bool) (Listing, error) {
	return parse(rules, text, today, incomplete, true)
}

func parse(rules []Rule, text string, today time.Time, incomplete, strict bool) (Listing, error) {
	lines := splitLines(text)

	listing := Listing{}
	ctx := &evalContext{langMask: AllLanguages, today: today}

	for i, line := range lines {
		if line == "" {
			continue
		}

		last := i == len(lines)-1
		item, matched := applyRules(rules, line, ctx)

		if !matched {
			if incomplete && last {
				listing.Truncated = true
				continue
			}

			if strict {
				return listing, &ParseError{Line: line}
			}

			continue
		}

		fillEmptyValues(&item, today)
		listing.Items = append(listing.Items, item)
	}

	return listing, nil
}

// ParseError reports that no rule matched a listing line.
type ParseError struct {
	Line string
}

func (e *ParseError) Error() string {
	return "listing: no rule matched line: " + e.Line
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// applyRules tries each rule against line, in order, rewinding the cursor
// to the line start between attempts. A rule matches only if every step
// succeeds and the cursor ends at end-of-line.
func applyRules(rules []Rule, line string, ctx *evalContext) (Item, bool) {
	for _, rule := range rules {
		c := newCursor(line)
		item := Item{Columns: make(map[string]Value)}

		matched := true
		for _, st := range rule.steps {
			if !st(c, &item, ctx) {
				matched = false
				break
			}
		}

		if matched && c.atEnd() {
			syncWellKnownColumns(&item)
			return item, true
		}
	}

	return Item{}, false
}

// syncWellKnownColumns copies the rule-assigned generic columns onto
// Item's typed fields, so callers get a ready-to-use record without
// knowing the server type's exact column-naming convention, as long as the
// server-type author used the conventional names below.
func syncWellKnownColumns(item *Item) {
	if v, ok := item.Columns["name"]; ok {
		item.Name = v.Str
	}
	if v, ok := item.Columns["link"]; ok {
		item.LinkTarget = v.Str
	}
	if v, ok := item.Columns["size"]; ok {
		item.Size = v.Num
		item.SizeUnknown = !v.HasNum
	}
	if v, ok := item.Columns["year"]; ok {
		item.Year = int(v.Num)
	}
	if v, ok := item.Columns["month"]; ok {
		item.Month = int(v.Num)
	}
	if v, ok := item.Columns["day"]; ok {
		item.Day = int(v.Num)
	}
	if v, ok := item.Columns["hour"]; ok {
		item.Hour = int(v.Num)
	}
	if v, ok := item.Columns["minute"]; ok {
		item.Minute = int(v.Num)
	}

	switch item.Columns["kind"].Str {
	case "d":
		item.Kind = KindDirectory
	case "l":
		item.Kind = KindLink
	case "f", "-":
		item.Kind = KindFile
	}

	if item.LinkTarget != "" {
		item.Kind = KindLink
	}
}

// fillEmptyValues applies year-correction: a date whose year was assumed
// from "today" is pushed back one year if it would otherwise land in the
// future relative to today.
func fillEmptyValues(item *Item, today time.Time) {
	if !item.AssumedYear {
		return
	}

	if item.Month == 0 {
		return
	}

	candidate := time.Date(item.Year, time.Month(item.Month), item.Day, 0, 0, 0, 0, time.UTC)
	ref := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	if candidate.After(ref) {
		item.Year--
	}
}
