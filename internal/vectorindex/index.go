package vectorindex

import "context"

// Match is one nearest-neighbor hit. Distance is in [0,1], lower is closer.
type Match struct {
	ID       string
	Distance float64
}

// Index is the vector-similarity store consumed by the retrieval agent.
type Index interface {
	Upsert(ctx context.Context, id, profileID, content string, metadata map[string]string) error
	Query(ctx context.Context, text, profileID string, k int) ([]Match, error)
	Delete(ctx context.Context, profileID, id string) error
	Close() error
}
