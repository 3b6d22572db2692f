package storage

import (
	"context"
	"time"

	"flat-stats/models"
)

// Query selects the listings of some scopes within an inclusive date window.
type Query struct {
	ScopeIDs []string
	From     time.Time
	To       time.Time
}

// ListingSource is the interface any listing backend must satisfy. Live
// databases and dump files are interchangeable behind it.
type ListingSource interface {
	Fetch(ctx context.Context, q Query) ([]*models.RawListing, error)
}

// ListingDumper persists a loaded dataset so a later run can reproduce it.
type ListingDumper interface {
	Dump(scopeIDs []string, listings []*models.Listing) error
}

// ReportCache keeps the latest generated report for readers such as the API.
type ReportCache interface {
	Save(ctx context.Context, report *models.Report) error
	Latest(ctx context.Context) (*models.Report, error)
}
