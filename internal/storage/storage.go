package storage

import (
	"context"

	"github.com/luamill/luamill/internal/model"
)

// RunRepository is the interface for run ledger persistence. The ledger is
// observational: the pipeline records what it resolved and how the run ended
// so past runs can be inspected after the fact.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.Run) error
	FinishRun(ctx context.Context, r model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
}
