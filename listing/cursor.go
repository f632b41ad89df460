package listing

import "strings"

// cursor walks one line of listing text left to right. Every step function
// either advances it and reports success, or leaves it untouched and
// reports failure; on rule failure the caller rewinds to the line start by
// discarding the cursor and re-slicing from offset 0.
type cursor struct {
	line string
	pos  int
}

func newCursor(line string) *cursor {
	return &cursor{line: line}
}

func (c *cursor) atEnd() bool {
	return c.pos >= len(c.line)
}

func (c *cursor) remaining() string {
	if c.atEnd() {
		return ""
	}
	return c.line[c.pos:]
}

func (c *cursor) peek() byte {
	if c.atEnd() {
		return 0
	}
	return c.line[c.pos]
}

func (c *cursor) advance(n int) {
	c.pos += n
	if c.pos > len(c.line) {
		c.pos = len(c.line)
	}
}

func (c *cursor) back(n int) {
	c.pos -= n
	if c.pos < 0 {
		c.pos = 0
	}
}

// mark/reset let a step try a sub-parse and roll back without losing the
// rest of the rule's progress.
func (c *cursor) mark() int      { return c.pos }
func (c *cursor) reset(mark int) { c.pos = mark }

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// skipWhiteSpaces consumes zero or more spaces/tabs, always succeeding.
func (c *cursor) skipWhiteSpaces() {
	for !c.atEnd() && isSpace(c.peek()) {
		c.advance(1)
	}
}

// takeWhiteSpaces consumes exactly n spaces/tabs if atLeast is false, or at
// least one (n ignored) if atLeast is true, per white_spaces(n|?).
func (c *cursor) takeWhiteSpaces(n int, atLeast bool) bool {
	start := c.mark()
	count := 0
	for !c.atEnd() && isSpace(c.peek()) {
		c.advance(1)
		count++
	}

	if atLeast {
		if count < 1 {
			c.reset(start)
			return false
		}
		return true
	}

	if count != n {
		c.reset(start)
		return false
	}

	return true
}

// takeWord reads a whitespace-delimited token.
func (c *cursor) takeWord() (string, bool) {
	start := c.pos
	for !c.atEnd() && !isSpace(c.peek()) {
		c.advance(1)
	}

	if c.pos == start {
		return "", false
	}

	return c.line[start:c.pos], true
}

// takeN reads exactly n bytes.
func (c *cursor) takeN(n int) (string, bool) {
	if len(c.remaining()) < n {
		return "", false
	}

	s := c.line[c.pos : c.pos+n]
	c.advance(n)

	return s, true
}

// takeTo reads up to (and consumes) the first occurrence of sep, returning
// the text before it.
func (c *cursor) takeTo(sep string) (string, bool) {
	idx := strings.Index(c.remaining(), sep)
	if idx < 0 {
		return "", false
	}

	s := c.remaining()[:idx]
	c.advance(idx + len(sep))

	return s, true
}

// takeDigits reads one or more consecutive digits.
func (c *cursor) takeDigits() (string, bool) {
	start := c.pos
	for !c.atEnd() && isDigit(c.peek()) {
		c.advance(1)
	}

	if c.pos == start {
		return "", false
	}

	return c.line[start:c.pos], true
}

// skipToNumber advances the cursor to the first digit found, or fails if
// none remains on the line.
func (c *cursor) skipToNumber() bool {
	for i := c.pos; i < len(c.line); i++ {
		if isDigit(c.line[i]) {
			c.advance(i - c.pos)
			return true
		}
	}

	return false
}
