package pipeline

import (
	"context"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

// Store is a submission store variant: the local JSON file or the remote
// table. Every failure is a *domain.DataSourceError.
type Store interface {
	FetchAll(ctx context.Context) ([]domain.RawRecord, error)
	Append(ctx context.Context, sub domain.Submission) error
	Name() string
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PhotoStore persists uploaded photo bytes and returns the reference stored
// as photo_url.
type PhotoStore interface {
	Save(ctx context.Context, id string, photo domain.Photo) (string, error)
	Remove(ctx context.Context, ref string) error
}

// PhotoFetcher loads the image behind a photo_url.
type PhotoFetcher interface {
	Fetch(ctx context.Context, ref string) (domain.Photo, error)
}

// ReviewPublisher queues imported submissions for manual review.
type ReviewPublisher interface {
	PublishPending(ctx context.Context, subs []domain.Submission) error
}
