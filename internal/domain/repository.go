package domain

import (
	"context"
	"time"
)

// CacheRepository defines the key-value store behind the hint cache.
// Values are opaque serialized bytes.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ExtractionProvider is one interchangeable remote extraction backend
type ExtractionProvider interface {
	Name() string
	Extract(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error)
}

// ImageLoader resolves an image reference to its encoded bytes
type ImageLoader interface {
	Load(ctx context.Context, img ImageInput) ([]byte, error)
}

// DraftRepository stores versioned draft sessions
type DraftRepository interface {
	Get(ctx context.Context, id string) (*DraftSession, error)
	Save(ctx context.Context, session *DraftSession) error
}

// VariantRepository is the persistence boundary for finalized variant sets
type VariantRepository interface {
	ReplaceVariants(ctx context.Context, productID string, variants []VariantRecord) error
	ListVariants(ctx context.Context, productID string) ([]VariantRecord, error)
}
