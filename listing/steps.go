package listing

import (
	"strconv"
	"strings"
	"time"
)

// evalContext carries the cross-line state a rule's steps need beyond the
// current cursor position: the still-live month-language candidates and
// the reference "today" used by year correction and year_or_time.
type evalContext struct {
	langMask languageMask
	today    time.Time
}

// step is one compiled DSL function: it inspects/advances the cursor and
// may populate item.Columns, reporting whether it matched.
type step func(c *cursor, item *Item, ctx *evalContext) bool

func col(item *Item, name string) Value {
	return item.Columns[name]
}

func setStr(item *Item, name, s string) {
	v := item.Columns[name]
	v.Str = s
	item.Columns[name] = v
}

func setNum(item *Item, name string, n int64) {
	v := item.Columns[name]
	v.Num = n
	v.HasNum = true
	item.Columns[name] = v
}

func stepSkipWhiteSpaces() step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		c.skipWhiteSpaces()
		return true
	}
}

func stepWhiteSpaces(n int, atLeast bool) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		return c.takeWhiteSpaces(n, atLeast)
	}
}

func stepWhiteSpacesAndLineEnds() step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		c.skipWhiteSpaces()
		return c.atEnd()
	}
}

func stepSkipToNumber() step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		return c.skipToNumber()
	}
}

func stepBack(n int) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		c.back(n)
		return true
	}
}

func stepRestOfLine(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		s := c.remaining()
		c.advance(len(s))
		if column != "" {
			setStr(item, column, s)
		}
		return true
	}
}

func stepWord(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		w, ok := c.takeWord()
		if !ok {
			return false
		}
		if column != "" {
			setStr(item, column, w)
		}
		return true
	}
}

func stepAll(n int, column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		s, ok := c.takeN(n)
		if !ok {
			return false
		}
		if column != "" {
			setStr(item, column, s)
		}
		return true
	}
}

func stepAllTo(sep, column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		s, ok := c.takeTo(sep)
		if !ok {
			return false
		}
		if column != "" {
			setStr(item, column, s)
		}
		return true
	}
}

func stepNumber(column string, positiveOnly bool) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()
		neg := false
		if !positiveOnly && c.peek() == '-' {
			neg = true
			c.advance(1)
		}

		digits, ok := c.takeDigits()
		if !ok {
			c.reset(start)
			return false
		}

		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			c.reset(start)
			return false
		}

		if neg {
			n = -n
		}

		if column != "" {
			setNum(item, column, n)
			setStr(item, column, digits)
		}

		return true
	}
}

func stepNumberWithSeparators(column, seps string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()
		var b strings.Builder

		for !c.atEnd() {
			ch := c.peek()
			if isDigit(ch) {
				b.WriteByte(ch)
				c.advance(1)
				continue
			}
			if strings.IndexByte(seps, ch) >= 0 {
				c.advance(1)
				continue
			}
			break
		}

		if b.Len() == 0 {
			c.reset(start)
			return false
		}

		n, err := strconv.ParseInt(b.String(), 10, 64)
		if err != nil {
			c.reset(start)
			return false
		}

		if column != "" {
			setNum(item, column, n)
			setStr(item, column, b.String())
		}

		return true
	}
}

func stepMonth3(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		s, ok := c.takeN(3)
		if !ok {
			return false
		}

		month, narrowed, ok := matchMonth3(s, ctx.langMask)
		if !ok {
			c.back(3)
			return false
		}

		ctx.langMask = narrowed
		if column != "" {
			setNum(item, column, int64(month))
		}

		return true
	}
}

func stepMonthNumeric(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()
		digits, ok := c.takeDigits()
		if !ok || len(digits) > 2 {
			c.reset(start)
			return false
		}

		n, _ := strconv.Atoi(digits)
		if n < 1 || n > 12 {
			c.reset(start)
			return false
		}

		if column != "" {
			setNum(item, column, int64(n))
		}

		return true
	}
}

func stepDay(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()
		digits, ok := c.takeDigits()
		if !ok || len(digits) > 2 {
			c.reset(start)
			return false
		}

		n, _ := strconv.Atoi(digits)
		if n < 1 || n > 31 {
			c.reset(start)
			return false
		}

		if column != "" {
			setNum(item, column, int64(n))
		}

		return true
	}
}

// expandYear turns a 2-digit year into a 4-digit one using the common FTP
// listing convention: < 70 means 20xx, otherwise 19xx.
func expandYear(n int) int {
	if n >= 1000 {
		return n
	}
	if n < 70 {
		return 2000 + n
	}
	return 1900 + n
}

func stepYear(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()
		digits, ok := c.takeDigits()
		if !ok || (len(digits) != 2 && len(digits) != 4) {
			c.reset(start)
			return false
		}

		n, _ := strconv.Atoi(digits)
		n = expandYear(n)

		if column != "" {
			setNum(item, column, int64(n))
		}

		return true
	}
}

func stepTime(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()

		hh, ok := c.takeDigits()
		if !ok || len(hh) > 2 || c.peek() != ':' {
			c.reset(start)
			return false
		}
		c.advance(1)

		mm, ok := c.takeDigits()
		if !ok || len(mm) != 2 {
			c.reset(start)
			return false
		}

		h, _ := strconv.Atoi(hh)
		m, _ := strconv.Atoi(mm)
		if h > 23 || m > 59 {
			c.reset(start)
			return false
		}

		if column != "" {
			setStr(item, column, hh+":"+mm)
			setNum(item, column, int64(h*60+m))
		}

		return true
	}
}

// yearOrTime handles the classic "MMM dd HH:MM" (recent file, year omitted
// and assumed current) vs "MMM dd  YYYY" (older file) column. It tries the
// time form first; on success it marks the item's year as assumed so the
// parser's fill-empty-values pass can apply year-correction.
func stepYearOrTime(dateColumn, timeColumn string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		c.skipWhiteSpaces()

		timeStep := stepTime(timeColumn)
		if timeStep(c, item, ctx) {
			item.AssumedYear = true
			setNum(item, dateColumn, int64(ctx.today.Year()))
			return true
		}

		return stepYear(dateColumn)(c, item, ctx)
	}
}

func stepUnixLink(isDirColumn, nameColumn, linkColumn string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		rest := c.remaining()
		if idx := strings.Index(rest, " -> "); idx >= 0 {
			name := rest[:idx]
			link := rest[idx+len(" -> "):]

			setStr(item, nameColumn, name)
			setStr(item, linkColumn, link)
			if isDirColumn != "" {
				setStr(item, isDirColumn, "false")
			}
			c.advance(len(rest))

			return true
		}

		setStr(item, nameColumn, rest)
		c.advance(len(rest))

		return true
	}
}

func stepUnixDevice(column string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		start := c.mark()

		major, ok := c.takeDigits()
		if !ok {
			c.reset(start)
			return false
		}

		c.skipWhiteSpaces()
		if c.peek() != ',' {
			c.reset(start)
			return false
		}
		c.advance(1)
		c.skipWhiteSpaces()

		minor, ok := c.takeDigits()
		if !ok {
			c.reset(start)
			return false
		}

		if column != "" {
			setStr(item, column, major+","+minor)
		}

		return true
	}
}

func stepCutWhiteSpaces(column string, start, end bool) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		v := col(item, column)
		s := v.Str
		if start {
			s = strings.TrimLeft(s, " \t")
		}
		if end {
			s = strings.TrimRight(s, " \t")
		}
		setStr(item, column, s)
		return true
	}
}

func stepCutEndOfString(column string, n int) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		v := col(item, column)
		if len(v.Str) >= n {
			setStr(item, column, v.Str[:len(v.Str)-n])
		}
		return true
	}
}

func stepAssign(column, expr string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		setStr(item, column, evalStringExpr(expr, item))
		return true
	}
}

func stepAddStringToColumn(column, expr string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		v := col(item, column)
		setStr(item, column, v.Str+evalStringExpr(expr, item))
		return true
	}
}

func stepIf(expr string) step {
	return func(c *cursor, item *Item, ctx *evalContext) bool {
		return evalBoolExpr(expr, item)
	}
}

// evalStringExpr resolves a double-quoted literal to its content, or an
// otherwise-bare word to the current string value of that column.
func evalStringExpr(expr string, item *Item) string {
	expr = strings.TrimSpace(expr)
	if len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"' {
		return expr[1 : len(expr)-1]
	}

	return col(item, expr).Str
}

// evalBoolExpr supports the small subset if()'s condition actually needs:
// column==" literal" and column!="literal".
func evalBoolExpr(expr string, item *Item) bool {
	expr = strings.TrimSpace(expr)

	if idx := strings.Index(expr, "=="); idx >= 0 {
		left := strings.TrimSpace(expr[:idx])
		right := evalStringExpr(expr[idx+2:], item)
		return col(item, left).Str == right
	}

	if idx := strings.Index(expr, "!="); idx >= 0 {
		left := strings.TrimSpace(expr[:idx])
		right := evalStringExpr(expr[idx+2:], item)
		return col(item, left).Str != right
	}

	return col(item, expr).Str != ""
}
