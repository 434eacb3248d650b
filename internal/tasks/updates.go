package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Confirm Phase = iota
	Submit
	Apply
	Export
)

func (p Phase) String() string {
	switch p {
	case Confirm:
		return "confirm"
	case Submit:
		return "submit"
	case Apply:
		return "apply"
	case Export:
		return "export"
	default:
		return ""
	}
}

func confirmUpdate(n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Confirm,
		Step:    1,
		Total:   3,
		Message: fmt.Sprintf("Waiting for confirmation (%d entries)...", n),
	}
}

func submitUpdate(op string, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Submit,
		Step:    2,
		Total:   3,
		Message: fmt.Sprintf("Submitting bulk %s for %d entries...", op, n),
	}
}

func appliedUpdate(out Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Apply,
		Step:    3,
		Total:   3,
		Message: out.Summary(),
		Data:    out,
	}
}

func exportingUpdate(step, total int, format string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting %s...", step, total, format),
	}
}

func exportCompletedUpdate(step, total int, format, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, format, path),
	}
}

func exportFailedUpdate(step, total int, format string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, format, err),
	}
}
