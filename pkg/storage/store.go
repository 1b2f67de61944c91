// Package storage provides prediction report storage implementations.
package storage

import (
	"context"

	"github.com/hirelens/hirelens/pkg/predictor"
)

// Store persists the latest prediction report per dataset so repeated reads
// serve the stored result instead of recomputing forecasts.
type Store interface {
	Put(ctx context.Context, report predictor.Report) error
	GetLatest(ctx context.Context, dataset string) (predictor.Report, bool, error)
}
