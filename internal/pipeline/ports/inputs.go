package ports

import (
	"context"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// PipelineUseCase is the driving port for running the release pipeline
// decision flow for a single trigger.
type PipelineUseCase interface {
	Execute(ctx context.Context, trigger domain.TriggerContext) ([]domain.UpdateResult, error)
}
