package services

import (
	"context"

	"github.com/desertthunder/dlx/internal/models"
)

// DownloadsAPI is the request/response half of the media server. [APIService] implements it.
type DownloadsAPI interface {
	// FetchDownloads returns the full current listing.
	FetchDownloads(ctx context.Context) ([]*models.Entry, error)

	// BulkEdit submits one patch per entry and returns the per-item outcome.
	BulkEdit(ctx context.Context, patches []models.Patch) (models.Envelope, error)

	// BulkDelete removes ids and returns the per-item outcome.
	BulkDelete(ctx context.Context, ids []int64) (models.Envelope, error)
}

var _ DownloadsAPI = (*APIService)(nil)
