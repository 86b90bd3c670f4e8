package checkpoint

import (
	"fmt"
	"strings"
)

// Mode is the execution mode of the agent runtime.
type Mode string

const (
	// ModeAutonomous stops only on hard failure or resource exhaustion.
	ModeAutonomous Mode = "autonomous"
	// ModeInteractive honours every configured checkpoint flag.
	ModeInteractive Mode = "interactive"
	// ModeSupervised is interactive plus mandatory high-risk checkpoints.
	ModeSupervised Mode = "supervised"
)

// ParseMode converts a case-insensitive name to a Mode; empty means interactive.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return ModeInteractive, nil
	case ModeAutonomous, ModeInteractive, ModeSupervised:
		return m, nil
	default:
		return "", fmt.Errorf("unknown execution mode: %q", name)
	}
}
