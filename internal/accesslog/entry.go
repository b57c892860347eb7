// Package accesslog writes one line per successful link resolution into
// per-link files, keeping a bounded-lifetime pool of open file handles.
//
// Files live at <dir>/<domain id>/<link key>.log and hold lines of the form
//
//	2024-05-01T10:00:00.000Z [203.0.113.7] [Mozilla/5.0] [https://ref.example/]
package accesslog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout of a log line: UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

const fieldSep = "] ["

var ErrMalformedLine = errors.New("malformed access log line")

// Entry is a single access record. DomainID and LinkKey select the file the
// entry is written to and are not part of the line itself.
type Entry struct {
	DomainID  string
	LinkKey   string
	IP        string
	UserAgent string
	Referer   string
	Timestamp time.Time
}

var (
	lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	escaper    = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
)

func escapeField(v string) string {
	return escaper.Replace(lineBreaks.Replace(v))
}

// FormatLine renders e as a newline-terminated log line. Line breaks inside
// fields are replaced with spaces so an entry never spans two lines, and
// backslashes and brackets are escaped with a backslash.
func FormatLine(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(TimeLayout))
	b.WriteString(" [")
	b.WriteString(escapeField(e.IP))
	b.WriteString(fieldSep)
	b.WriteString(escapeField(e.UserAgent))
	b.WriteString(fieldSep)
	b.WriteString(escapeField(e.Referer))
	b.WriteString("]\n")
	return b.String()
}

// ParseLine recovers the fields of a line written by FormatLine.
func ParseLine(line string) (Entry, error) {
	line = strings.TrimSuffix(line, "\n")

	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, ErrMalformedLine
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}

	var fields [3]string
	for i := range fields {
		if i > 0 {
			if !strings.HasPrefix(rest, " ") {
				return Entry{}, ErrMalformedLine
			}
			rest = rest[1:]
		}
		fields[i], rest, err = readField(rest)
		if err != nil {
			return Entry{}, err
		}
	}
	if rest != "" {
		return Entry{}, fmt.Errorf("%w: trailing data", ErrMalformedLine)
	}

	return Entry{
		Timestamp: t,
		IP:        fields[0],
		UserAgent: fields[1],
		Referer:   fields[2],
	}, nil
}

// readField reads one bracketed, escaped field from the start of s and
// returns its unescaped value and the remainder after the closing bracket.
func readField(s string) (string, string, error) {
	if !strings.HasPrefix(s, "[") {
		return "", "", ErrMalformedLine
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
			if i == len(s) {
				return "", "", fmt.Errorf("%w: dangling escape", ErrMalformedLine)
			}
			b.WriteByte(s[i])
		case '[':
			return "", "", fmt.Errorf("%w: unescaped bracket", ErrMalformedLine)
		case ']':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("%w: unterminated field", ErrMalformedLine)
}
