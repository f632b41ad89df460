package listing

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule is one compiled line of the DSL: a sequence of steps that must all
// succeed, in order, consuming the whole line, for the rule to match.
type Rule struct {
	Source string
	steps  []step
}

// Compile turns DSL source (the "rules" body of a .str file) into an
// ordered list of rules, tried top to bottom against each listing line.
func Compile(source string) ([]Rule, error) {
	body := stripComments(source)

	chunks := strings.Split(body, "*")
	var rules []Rule

	for _, chunk := range chunks[1:] {
		end := strings.IndexByte(chunk, ';')
		if end < 0 {
			return nil, fmt.Errorf("listing: rule missing terminating ';': %q", chunk)
		}

		ruleBody := chunk[:end]

		calls, err := tokenizeCalls(ruleBody)
		if err != nil {
			return nil, err
		}

		steps := make([]step, 0, len(calls))
		for _, call := range calls {
			st, err := buildStep(call)
			if err != nil {
				return nil, err
			}
			steps = append(steps, st)
		}

		rules = append(rules, Rule{Source: strings.TrimSpace(ruleBody), steps: steps})
	}

	return rules, nil
}

func stripComments(source string) string {
	var b strings.Builder

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String()
}

type call struct {
	name string
	args []string
}

// tokenizeCalls splits one rule body into whitespace-separated function
// calls, each optionally parenthesised with comma-separated arguments.
// Commas and whitespace inside a double-quoted argument don't split.
func tokenizeCalls(body string) ([]call, error) {
	var calls []call

	i := 0
	n := len(body)

	for i < n {
		for i < n && isDelim(body[i]) {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && (isLetterDigitUnderscore(body[i])) {
			i++
		}

		if i == start {
			return nil, fmt.Errorf("listing: unexpected character %q in rule", body[i])
		}

		name := body[start:i]

		var args []string
		if i < n && body[i] == '(' {
			i++
			argStart := i
			depth := 1
			inQuote := false

			for i < n && depth > 0 {
				ch := body[i]
				switch {
				case ch == '"':
					inQuote = !inQuote
				case ch == '(' && !inQuote:
					depth++
				case ch == ')' && !inQuote:
					depth--
					if depth == 0 {
						continue
					}
				}
				i++
			}

			if depth != 0 {
				return nil, fmt.Errorf("listing: unbalanced parens in rule near %q", name)
			}

			argsText := body[argStart:i]
			i++ // consume ')'

			args = splitArgs(argsText)
		}

		calls = append(calls, call{name: name, args: args})
	}

	return calls, nil
}

func isDelim(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isLetterDigitUnderscore(b byte) bool {
	return b == '_' || b == '?' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var args []string
	var b strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == ',' && !inQuote:
			args = append(args, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	args = append(args, strings.TrimSpace(b.String()))

	return args
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func buildStep(c call) (step, error) {
	switch c.name {
	case "skip_white_spaces":
		return stepSkipWhiteSpaces(), nil
	case "white_spaces":
		a := arg(c.args, 0)
		if a == "?" {
			return stepWhiteSpaces(0, true), nil
		}
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("listing: white_spaces: %w", err)
		}
		return stepWhiteSpaces(n, false), nil
	case "white_spaces_and_line_ends":
		return stepWhiteSpacesAndLineEnds(), nil
	case "skip_to_number":
		return stepSkipToNumber(), nil
	case "back":
		n, err := strconv.Atoi(arg(c.args, 0))
		if err != nil {
			return nil, fmt.Errorf("listing: back: %w", err)
		}
		return stepBack(n), nil
	case "rest_of_line":
		return stepRestOfLine(arg(c.args, 0)), nil
	case "word":
		return stepWord(arg(c.args, 0)), nil
	case "all":
		n, err := strconv.Atoi(arg(c.args, 0))
		if err != nil {
			return nil, fmt.Errorf("listing: all: %w", err)
		}
		return stepAll(n, arg(c.args, 1)), nil
	case "all_to":
		return stepAllTo(unquote(arg(c.args, 0)), arg(c.args, 1)), nil
	case "all_up_to":
		return stepAllTo(unquote(arg(c.args, 1)), arg(c.args, 0)), nil
	case "number":
		return stepNumber(arg(c.args, 0), false), nil
	case "positive_number":
		return stepNumber(arg(c.args, 0), true), nil
	case "number_with_separators":
		return stepNumberWithSeparators(arg(c.args, 0), unquote(arg(c.args, 1))), nil
	case "month_3", "month_txt":
		return stepMonth3(arg(c.args, 0)), nil
	case "month":
		return stepMonthNumeric(arg(c.args, 0)), nil
	case "day":
		return stepDay(arg(c.args, 0)), nil
	case "year":
		return stepYear(arg(c.args, 0)), nil
	case "time":
		return stepTime(arg(c.args, 0)), nil
	case "year_or_time":
		return stepYearOrTime(arg(c.args, 0), arg(c.args, 1)), nil
	case "unix_link":
		return stepUnixLink(arg(c.args, 0), arg(c.args, 1), arg(c.args, 2)), nil
	case "unix_device":
		return stepUnixDevice(arg(c.args, 0)), nil
	case "if":
		return stepIf(arg(c.args, 0)), nil
	case "assign":
		return stepAssign(arg(c.args, 0), arg(c.args, 1)), nil
	case "cut_white_spaces":
		return stepCutWhiteSpaces(arg(c.args, 0), true, true), nil
	case "cut_white_spaces_start":
		return stepCutWhiteSpaces(arg(c.args, 0), true, false), nil
	case "cut_white_spaces_end":
		return stepCutWhiteSpaces(arg(c.args, 0), false, true), nil
	case "add_string_to_column":
		return stepAddStringToColumn(arg(c.args, 0), arg(c.args, 1)), nil
	case "cut_end_of_string":
		n, err := strconv.Atoi(arg(c.args, 1))
		if err != nil {
			return nil, fmt.Errorf("listing: cut_end_of_string: %w", err)
		}
		return stepCutEndOfString(arg(c.args, 0), n), nil
	default:
		return nil, fmt.Errorf("listing: unknown rule function %q", c.name)
	}
}
