// Package parse turns raw facility labels into structured fields. Key
// codes follow the campus convention "<building>-<room>-<copy>", e.g.
// "B2-0312-01"; master keys use "MASTER" in place of the room number.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var keyCodeRe = regexp.MustCompile(`(?i)^([A-Z]\d*)-(\d{2,4}|MASTER)(?:-(\d{1,2}))?$`)

// ParsedKeyCode holds the structured data parsed from a key code.
type ParsedKeyCode struct {
	Building string
	Room     string // "MASTER" for building master keys
	Copy     int
}

// Master reports whether the code names a building master key.
func (p ParsedKeyCode) Master() bool {
	return p.Room == "MASTER"
}

// ParseKeyCode extracts building, room, and copy number from a raw key
// code. The copy number is optional and defaults to 1.
func ParseKeyCode(raw string) (ParsedKeyCode, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	m := keyCodeRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedKeyCode{}, fmt.Errorf("unable to parse key code: %q", raw)
	}

	copyNo := 1
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil || n == 0 {
			return ParsedKeyCode{}, fmt.Errorf("invalid copy number in key code: %q", raw)
		}
		copyNo = n
	}

	return ParsedKeyCode{
		Building: m[1],
		Room:     m[2],
		Copy:     copyNo,
	}, nil
}
