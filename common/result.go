package common

import (
	"fmt"
	"strings"
)

// OperationResult represents the outcome of one named patch or repack
// step. Batch drivers collect these so a single failure does not abort
// unrelated work.
type OperationResult struct {
	Name     string
	Applied  bool
	Message  string
	Count    int // Number of items affected (modules replaced, matches rewritten, etc.)
	Warnings []string
}

// NewSkipped creates a result for skipped operations
func NewSkipped(name, reason string) *OperationResult {
	return &OperationResult{
		Name:    name,
		Applied: false,
		Message: reason,
	}
}

// NewApplied creates a result for applied operations
func NewApplied(name, message string, count int) *OperationResult {
	return &OperationResult{
		Name:    name,
		Applied: true,
		Message: message,
		Count:   count,
	}
}

// Warn attaches an in-band warning to the result. Warnings are carried
// even on applied results; the Mach-O truncation path depends on this.
func (r *OperationResult) Warn(format string, args ...interface{}) *OperationResult {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	return r
}

// String returns a human-readable representation
func (r *OperationResult) String() string {
	var b strings.Builder
	if r.Name != "" {
		b.WriteString(r.Name + ": ")
	}
	if r.Applied {
		if r.Count > 0 {
			b.WriteString(fmt.Sprintf("APPLIED (%s, %d items)", r.Message, r.Count))
		} else {
			b.WriteString(fmt.Sprintf("APPLIED (%s)", r.Message))
		}
	} else {
		b.WriteString(fmt.Sprintf("SKIPPED (%s)", r.Message))
	}
	for _, w := range r.Warnings {
		b.WriteString("\n  warning: " + w)
	}
	return b.String()
}
