// Package cefr models the six-tier CEFR proficiency scale.
package cefr

import (
	"fmt"
	"strings"
)

type Level string

const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

// Default is the level a new learner starts at.
const Default = A1

// All lists the levels from lowest to highest.
func All() []Level {
	return []Level{A1, A2, B1, B2, C1, C2}
}

func (l Level) Valid() bool {
	switch l {
	case A1, A2, B1, B2, C1, C2:
		return true
	default:
		return false
	}
}

// Parse accepts any casing and surrounding whitespace.
func Parse(raw string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(raw)))
	if !l.Valid() {
		return "", fmt.Errorf("invalid CEFR level %q (expected A1|A2|B1|B2|C1|C2)", raw)
	}
	return l, nil
}

// ParseOrDefault returns Default for empty or unknown input.
func ParseOrDefault(raw string) Level {
	l, err := Parse(raw)
	if err != nil {
		return Default
	}
	return l
}
