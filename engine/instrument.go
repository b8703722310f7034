package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// TriggerHookName is the global the instrumented code calls. It must be
// bound in the evaluation globals before instrumented source runs.
const TriggerHookName = "__trigger"

// matches a Sequence/Pattern/Loop construction whose first argument is an
// arrow callback with one or two parameters, e.g.
//
//	const seq = new Tone.Sequence((time, note) => { ... }, notes, "8n");
//
// capture 1 is the constructor name, 2 and 3 the callback parameters.
var ctorArrowRe = regexp.MustCompile(
	`\b(?:new\s+)?(?:[A-Za-z_$][\w$]*\s*\.\s*)?(Sequence|Pattern|Loop)\s*\(\s*\(\s*([A-Za-z_$][\w$]*)\s*(?:,\s*([A-Za-z_$][\w$]*))?\s*\)\s*=>\s*`)

// Instrument rewrites sequencing callbacks in src so that each one reports
// its firing to the trigger hook, tagged with the 1-based line number of
// the construction in the original text. Constructions inside comments or
// string literals are left alone. Lines that match nothing pass through
// unchanged; the transform never fails on malformed input.
func Instrument(src string) string {
	lines := strings.Split(src, "\n")
	var sc maskScanner
	for i, line := range lines {
		lines[i] = instrumentLine(line, i+1, sc.codeMask(line))
	}
	return strings.Join(lines, "\n")
}

func instrumentLine(line string, lineNo int, code []bool) string {
	matches := ctorArrowRe.FindAllStringSubmatchIndex(line, -1)
	// rewrite right to left so earlier match offsets stay valid
	for m := len(matches) - 1; m >= 0; m-- {
		loc := matches[m]
		if !code[loc[0]] {
			continue
		}
		eventArg := "null"
		if loc[6] >= 0 {
			eventArg = line[loc[6]:loc[7]]
		}
		hook := fmt.Sprintf("%s(%d, %s, \"note\");", TriggerHookName, lineNo, eventArg)
		rest := line[loc[1]:]
		if strings.HasPrefix(rest, "{") {
			line = line[:loc[1]] + "{ " + hook + rest[1:]
			continue
		}
		// expression body: find where the expression ends and convert to a
		// block so the hook can run first
		end := exprEnd(rest)
		line = line[:loc[1]] + "{ " + hook + " " + strings.TrimRight(rest[:end], " \t") + "; }" + rest[end:]
	}
	return line
}

// maskScanner tracks string and comment state while walking a source text
// line by line, so matches inside comments or string literals can be
// skipped. Block comments and template strings continue across line breaks;
// an unterminated quote string is treated as ending with its line.
type maskScanner struct {
	inComment  bool
	inTemplate bool
}

// codeMask reports, per byte of line, whether that byte is live code.
func (s *maskScanner) codeMask(line string) []bool {
	mask := make([]bool, len(line))
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case s.inComment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				s.inComment = false
				i++
			}
		case s.inTemplate:
			switch c {
			case '\\':
				i++
			case '`':
				s.inTemplate = false
			}
		case quote != 0:
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return mask
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			s.inComment = true
			i++
		case c == '`':
			s.inTemplate = true
		case c == '\'' || c == '"':
			quote = c
		default:
			mask[i] = true
		}
	}
	return mask
}

// exprEnd scans an expression-bodied callback and returns the offset just
// past the expression: the first comma at nesting depth zero (the
// constructor's next argument), the parenthesis closing the constructor
// call, or end of line. Strings are skipped with escape awareness.
func exprEnd(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}
