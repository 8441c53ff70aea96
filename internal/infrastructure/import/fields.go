package csvimport

import (
	"strings"
)

const quote = '"'

// splitFields splits a line on delim without failing on malformed quoting.
// Fields are returned with their quotes intact. A quote only opens a quoted
// field at the start of a field, and only closes it when followed by the
// delimiter or the end of the line (optionally after spaces); any other quote
// is kept as content.
func splitFields(line string, delim rune) []string {
	d := byte(delim)
	n := len(line)
	fields := make([]string, 0, 8)

	i := 0
	for {
		start := i
		if i < n && line[i] == quote {
			j := i + 1
			closed := false
			for j < n {
				if line[j] != quote {
					j++
					continue
				}
				if j+1 < n && line[j+1] == quote {
					j += 2
					continue
				}
				k := j + 1
				for k < n && line[k] == ' ' {
					k++
				}
				if k == n || line[k] == d {
					j = k
					closed = true
					break
				}
				j++
			}
			if !closed {
				j = n
			}
			i = j
		} else {
			j := strings.IndexByte(line[i:], d)
			if j < 0 {
				i = n
			} else {
				i += j
			}
		}
		fields = append(fields, line[start:i])

		if i >= n {
			break
		}
		// line[i] is the delimiter
		i++
		if i == n {
			fields = append(fields, "")
			break
		}
	}
	return fields
}

// joinFields is the inverse of splitFields
func joinFields(fields []string, delim rune) string {
	return strings.Join(fields, string(delim))
}

// countFields returns the number of fields on the line
func countFields(line string, delim rune) int {
	return len(splitFields(line, delim))
}

// isQuoted reports whether a raw field starts with a quote
func isQuoted(field string) bool {
	return len(field) > 0 && field[0] == quote
}

// isTerminated reports whether a quoted raw field has its closing quote
func isTerminated(field string) bool {
	field = strings.TrimRight(field, " ")
	if !isQuoted(field) {
		return true
	}
	if len(field) < 2 || field[len(field)-1] != quote {
		return false
	}
	// an odd run of trailing quotes closes the field; an even run is escaped content
	run := 0
	for k := len(field) - 1; k > 0 && field[k] == quote; k-- {
		run++
	}
	return run%2 == 1
}

// unquote returns the content of a raw field with escaping undone
func unquote(field string) string {
	f := strings.TrimSpace(field)
	if !isQuoted(f) {
		return f
	}
	inner := f[1:]
	if isTerminated(f) {
		inner = f[1 : len(f)-1]
	}
	return strings.ReplaceAll(inner, `""`, `"`)
}

// requote renders content as a raw field, quoting it when it holds a quote or the delimiter
func requote(content string, delim rune) string {
	if !strings.ContainsRune(content, quote) && !strings.ContainsRune(content, delim) {
		return content
	}
	return `"` + strings.ReplaceAll(content, `"`, `""`) + `"`
}
