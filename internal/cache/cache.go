package cache

import (
	"context"
	"time"

	"tokobuning/backend/internal/domain"
)

// LookupCache stores barcode lookup results and guards concurrent lookups of
// the same code.
type LookupCache interface {
	Get(ctx context.Context, code string) (*domain.BarcodeProduct, bool, error)
	Set(ctx context.Context, code string, value *domain.BarcodeProduct, ttl time.Duration) error
	// Lock reports ok=false when another holder has the code. The release
	// func is always safe to call.
	Lock(ctx context.Context, code string, ttl time.Duration) (release func(), ok bool, err error)
}

type NoopLookupCache struct{}

func (NoopLookupCache) Get(_ context.Context, _ string) (*domain.BarcodeProduct, bool, error) {
	return nil, false, nil
}

func (NoopLookupCache) Set(_ context.Context, _ string, _ *domain.BarcodeProduct, _ time.Duration) error {
	return nil
}

func (NoopLookupCache) Lock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
