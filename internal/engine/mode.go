package engine

import (
	"fmt"
	"strings"
)

// Mode selects what a scope does with intercepted operations.
type Mode string

const (
	// ModeNone passes every call straight through.
	ModeNone Mode = "NONE"
	// ModeProfile captures live invocations for a sampled share of scopes.
	ModeProfile Mode = "PROFILE"
	// ModeTest replays a recorded scope and compares the response.
	ModeTest Mode = "TEST"
	// ModeSerialize replays a recorded scope without comparing.
	ModeSerialize Mode = "SERIALIZE"
	// ModeTransform replays the recorded request and re-captures its invocations.
	ModeTransform Mode = "TRANSFORM"
	// ModeDynamic picks one of the other modes per request from the mode header.
	ModeDynamic Mode = "DYNAMIC"
)

// Modes lists every mode in declaration order.
var Modes = []Mode{ModeNone, ModeProfile, ModeTest, ModeSerialize, ModeTransform, ModeDynamic}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// ResolveMode returns the effective mode of one request. A configured
// DYNAMIC mode defers to attr; an attribute that is missing, invalid or
// itself DYNAMIC resolves to NONE.
func ResolveMode(configured Mode, attr string) Mode {
	if configured != ModeDynamic {
		return configured
	}
	m, err := ParseMode(attr)
	if err != nil || m == ModeDynamic {
		return ModeNone
	}
	return m
}

// Captures reports whether the mode records live invocations.
func (m Mode) Captures() bool {
	return m == ModeProfile || m == ModeTransform
}

// Replays reports whether the mode serves invocations from a recording.
func (m Mode) Replays() bool {
	return m == ModeTest || m == ModeSerialize
}
