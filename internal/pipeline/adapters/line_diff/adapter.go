// Package linediff provides unified diff computation for values files.
package linediff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Adapter implements ports.DiffPort using a line-by-line unified diff.
type Adapter struct{}

// New creates a new line-based diff adapter.
func New() *Adapter {
	return &Adapter{}
}

// ComputeDiff returns the unified diff between base and head, or the empty
// string when the documents are identical.
func (a *Adapter) ComputeDiff(baseName, headName string, base, head []byte) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(base)),
		B:        difflib.SplitLines(string(head)),
		FromFile: baseName,
		ToFile:   headName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("error computing diff: %s", err)
	}
	return strings.TrimSpace(text)
}
