package domain

// Status represents the outcome of a chart update for a single service.
type Status int

const (
	StatusUnchanged Status = iota // values already pointed at the new image
	StatusUpdated                 // values rewritten
	StatusError                   // update failed
)

// String returns the string representation of the Status.
// Implements the Stringer interface.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

var statusNames = [...]string{
	StatusUnchanged: "Unchanged",
	StatusUpdated:   "Updated",
	StatusError:     "Error",
}

// UpdateResult records the outcome of the pipeline for one affected service.
type UpdateResult struct {
	Service   string
	Tags      []string // image tags the build must carry
	ImageRef  string   // full registry reference at the primary tag
	Status    Status
	Persisted bool   // true when the rewrite was committed to the trunk branch
	Diff      string // unified diff of the values file (empty when unchanged)
	Summary   string // human-readable summary (or error message on StatusError)
}

// CountByStatus returns counts of results grouped by status.
func CountByStatus(results []UpdateResult) (unchanged, updated, errors int) {
	for _, r := range results {
		switch r.Status {
		case StatusUnchanged:
			unchanged++
		case StatusUpdated:
			updated++
		case StatusError:
			errors++
		}
	}
	return
}

// HasFailures reports whether any result ended in error.
func HasFailures(results []UpdateResult) bool {
	for _, r := range results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}
