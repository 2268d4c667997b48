package githubout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

func sampleResults() []domain.UpdateResult {
	return []domain.UpdateResult{
		{
			Service:  "ui",
			Tags:     []string{"abc123ef", "latest"},
			ImageRef: "registry.example.com/ui:abc123ef",
			Status:   domain.StatusUpdated,
			Diff:     "-  tag: \"old\"\n+  tag: \"abc123ef\"",
			Summary:  "image tag set to abc123ef",
		},
		{
			Service:  "catalog",
			Tags:     []string{"abc123ef", "latest"},
			ImageRef: "registry.example.com/catalog:abc123ef",
			Status:   domain.StatusUnchanged,
			Summary:  "already at abc123ef",
		},
		{
			Service: "cart",
			Status:  domain.StatusError,
			Summary: "values file not found for service cart at helm/cart/values.yaml",
		},
	}
}

func TestFormatCheckRun(t *testing.T) {
	t.Parallel()

	conclusion, summary, text := formatCheckRun(sampleResults())

	assert.Equal(t, "failure", conclusion)
	assert.Equal(t, "3 service(s) affected: 1 updated, 1 already current, 1 failed", summary)

	assert.Contains(t, text, "| `ui` | `registry.example.com/ui:abc123ef` |")
	assert.Contains(t, text, "✅ Already current")
	assert.Contains(t, text, "❌ Error")
	assert.Contains(t, text, "values file not found")
	assert.Contains(t, text, "```diff")
}

func TestFormatCheckRun_AllCleanIsSuccess(t *testing.T) {
	t.Parallel()

	results := []domain.UpdateResult{
		{Service: "ui", Status: domain.StatusUnchanged},
	}
	conclusion, _, _ := formatCheckRun(results)
	assert.Equal(t, "success", conclusion)
}

func TestFormatCheckRun_TruncatesLongOutput(t *testing.T) {
	t.Parallel()

	results := []domain.UpdateResult{{
		Service: "ui",
		Status:  domain.StatusUpdated,
		Diff:    strings.Repeat("+x\n", 40000),
	}}
	_, _, text := formatCheckRun(results)

	assert.LessOrEqual(t, len(text), maxCheckRunTextLen)
	assert.Contains(t, text, "(output truncated)")
}

func TestFormatPRComment(t *testing.T) {
	t.Parallel()

	adapter := New(nil, "release-pilot", "https://github.com/apps/release-pilot", nil)
	body := adapter.FormatPRComment(sampleResults())

	assert.True(t, strings.HasPrefix(body, "<!-- release-pilot -->\n"), "marker must lead the comment")
	assert.Contains(t, body, "## 🚀 Build Plan")
	assert.Contains(t, body, "❌ **Status:** 1 service(s) failed to update")
	assert.Contains(t, body, "| `catalog` |")
	assert.Contains(t, body, "View values diff")
	assert.Contains(t, body, "_Posted by [release-pilot](https://github.com/apps/release-pilot)_")
}

func TestFormatPRComment_PendingUpdatesOnly(t *testing.T) {
	t.Parallel()

	adapter := New(nil, "release-pilot", "", nil)
	body := adapter.FormatPRComment([]domain.UpdateResult{
		{Service: "orders", ImageRef: "registry.example.com/orders:pr-7-abc", Status: domain.StatusUpdated, Diff: "+tag"},
	})

	assert.Contains(t, body, "1 service(s) would be updated on merge")
	assert.Contains(t, body, "📝 Update pending")
	assert.Contains(t, body, "_Posted by release-pilot_")
}

func TestFormatPRComment_Empty(t *testing.T) {
	t.Parallel()

	adapter := New(nil, "release-pilot", "", nil)
	assert.Empty(t, adapter.FormatPRComment(nil))
}
