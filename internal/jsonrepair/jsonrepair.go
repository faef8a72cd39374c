// Package jsonrepair extracts and tolerantly parses JSON embedded in
// free-form text returned by a language model.
//
// # Description
//
// Language models wrap JSON in prose, code fences, and the occasional
// trailing comma or stray quote. Repair locates the first JSON value in
// the text and applies a small set of targeted fixes before handing the
// result to encoding/json. It never invents missing fields or guesses
// values — if a fix does not make the text parse, repair fails.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONFound indicates no '{' or '[' could be located in the input.
var ErrNoJSONFound = errors.New("jsonrepair: no JSON value found in text")

// ParseError carries a diagnostic preview of the text repair could not
// parse, capped at 500 characters per the contract in spec.md C2.
type ParseError struct {
	Preview string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonrepair: failed to parse JSON: %v (preview: %q)", e.Cause, e.Preview)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func preview(s string) string {
	if len(s) <= 500 {
		return s
	}
	return s[:500]
}

// Parse extracts the first JSON value from text and unmarshals it into
// an any (map[string]any, []any, or a scalar).
//
// Pipeline: locate the candidate span by bracket counting (tolerant of
// strings and escapes), strip surrounding code fences, attempt a direct
// parse, and if that fails apply targeted fixes (trailing commas,
// unbalanced brackets, stray quotes, stray backslashes) before
// retrying once.
func Parse(text string) (any, error) {
	candidate, err := extractCandidate(text)
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return v, nil
	}

	fixed := applyFixes(candidate)
	if err := json.Unmarshal([]byte(fixed), &v); err == nil {
		return v, nil
	} else {
		return nil, &ParseError{Preview: preview(text), Cause: err}
	}
}

// ParseInto behaves like Parse but unmarshals into the caller-provided
// destination, matching encoding/json.Unmarshal's semantics for dst.
func ParseInto(text string, dst any) error {
	v, err := Parse(text)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return &ParseError{Preview: preview(text), Cause: err}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ParseError{Preview: preview(text), Cause: err}
	}
	return nil
}

// extractCandidate strips code fences and returns the substring spanning
// the first top-level JSON value found via bracket counting.
func extractCandidate(text string) (string, error) {
	text = stripCodeFences(text)

	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			start, open, close = i, '{', '}'
		case '[':
			start, open, close = i, '[', ']'
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return "", ErrNoJSONFound
	}

	depth := 0
	inString := false
	escaped := false
	end := -1
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}

	if end == -1 {
		// Unbalanced: take to the end of the text, let applyFixes close it.
		return text[start:], nil
	}
	return text[start : end+1], nil
}

// stripCodeFences removes ```json / ``` wrapping and bare "json" language
// tags that models sometimes leave on their own line.
func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "```")
	for {
		idx := strings.Index(text, "```")
		if idx == -1 {
			break
		}
		end := strings.Index(text[idx+3:], "```")
		if end == -1 {
			text = text[:idx] + text[idx+3:]
			break
		}
		text = text[:idx] + text[idx+3:idx+3+end] + text[idx+3+end+3:]
	}
	return strings.TrimSpace(text)
}

// applyFixes runs the targeted repair passes in order: trailing comma
// removal, quote normalization, stray-backslash escaping, and bracket
// balancing (in that order, since balancing depends on a clean string).
func applyFixes(s string) string {
	s = removeTrailingCommas(s)
	s = normalizeQuotes(s)
	s = collapseStrayBackslashes(s)
	s = closeUnbalancedBrackets(s)
	return s
}

// removeTrailingCommas deletes a comma that is followed (ignoring
// whitespace) by a closing bracket, outside of string literals.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if inString {
			b.WriteRune(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteRune(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteRune(c)
	}
	return b.String()
}

// normalizeQuotes converts single-quoted string literals to double
// quotes, but leaves single quotes that appear inside an already
// double-quoted string untouched.
func normalizeQuotes(s string) string {
	var b strings.Builder
	inDouble := false
	inSingle := false
	escaped := false
	for _, c := range s {
		switch {
		case escaped:
			b.WriteRune(c)
			escaped = false
		case c == '\\':
			b.WriteRune(c)
			escaped = true
		case inDouble:
			b.WriteRune(c)
			if c == '"' {
				inDouble = false
			}
		case inSingle:
			if c == '\'' {
				b.WriteRune('"')
				inSingle = false
			} else {
				b.WriteRune(c)
			}
		case c == '"':
			inDouble = true
			b.WriteRune(c)
		case c == '\'':
			inSingle = true
			b.WriteRune('"')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// collapseStrayBackslashes doubles each backslash that does not start a
// valid JSON escape sequence, so it decodes as a literal backslash.
func collapseStrayBackslashes(s string) string {
	validEscapes := "\"\\/bfnrtu"
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '\\' {
			b.WriteRune(c)
			continue
		}
		if i+1 < len(runes) && strings.ContainsRune(validEscapes, runes[i+1]) {
			b.WriteRune(c)
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

// closeUnbalancedBrackets appends closing braces/brackets to balance
// any that were left open, in LIFO order.
func closeUnbalancedBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
