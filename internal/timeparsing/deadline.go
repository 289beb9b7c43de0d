// Package timeparsing resolves user-supplied deadline expressions.
//
// Three shapes are accepted, tried in order: RFC3339 timestamps, bare
// dates (YYYY-MM-DD, resolved to end of day local time), and English
// natural-language expressions like "tomorrow 5pm" or "next friday".
package timeparsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/taskmesh/taskmesh/internal/types"
)

const dateOnly = "2006-01-02"

// parser is shared; when.Parser is read-only after Add.
var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDeadline resolves input relative to now. Bare dates mean "due by
// the end of that day".
func ParseDeadline(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, &types.ValidationError{Field: "deadline", Reason: "empty deadline"}
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseInLocation(dateOnly, s, time.Local); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.Local), nil
	}

	result, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, &types.ValidationError{Field: "deadline", Reason: fmt.Sprintf("could not parse %q: %v", s, err)}
	}
	if result == nil {
		return time.Time{}, &types.ValidationError{Field: "deadline", Reason: fmt.Sprintf("could not parse %q; use RFC3339, YYYY-MM-DD, or phrases like \"tomorrow 5pm\"", s)}
	}
	return result.Time, nil
}
