package domain

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnchanged, "Unchanged"},
		{StatusUpdated, "Updated"},
		{StatusError, "Error"},
		{Status(99), "Unknown"},
		{Status(-1), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.status.String()
			if got != tt.want {
				t.Errorf("Status.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountByStatus(t *testing.T) {
	results := []UpdateResult{
		{Service: "ui", Status: StatusUpdated},
		{Service: "cart", Status: StatusUnchanged},
		{Service: "orders", Status: StatusError},
		{Service: "catalog", Status: StatusUpdated},
	}

	unchanged, updated, errs := CountByStatus(results)
	if unchanged != 1 || updated != 2 || errs != 1 {
		t.Errorf("CountByStatus() = (%d, %d, %d), want (1, 2, 1)", unchanged, updated, errs)
	}
}

func TestHasFailures(t *testing.T) {
	tests := []struct {
		name    string
		results []UpdateResult
		want    bool
	}{
		{
			name:    "empty results",
			results: nil,
			want:    false,
		},
		{
			name: "all clean",
			results: []UpdateResult{
				{Status: StatusUpdated},
				{Status: StatusUnchanged},
			},
			want: false,
		},
		{
			name: "one error",
			results: []UpdateResult{
				{Status: StatusUpdated},
				{Status: StatusError},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasFailures(tt.results); got != tt.want {
				t.Errorf("HasFailures() = %v, want %v", got, tt.want)
			}
		})
	}
}
