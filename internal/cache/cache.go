package cache

import (
	"context"
	"time"

	"stockbook/backend/internal/domain"
)

// DirectoryCache caches party directory listings. Built ledgers are always
// computed fresh and never pass through here.
type DirectoryCache interface {
	Get(ctx context.Context, key string) ([]domain.Party, bool, error)
	Set(ctx context.Context, key string, parties []domain.Party, ttl time.Duration) error
}

type NoopDirectoryCache struct{}

func (NoopDirectoryCache) Get(_ context.Context, _ string) ([]domain.Party, bool, error) {
	return nil, false, nil
}

func (NoopDirectoryCache) Set(_ context.Context, _ string, _ []domain.Party, _ time.Duration) error {
	return nil
}
