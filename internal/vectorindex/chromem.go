package vectorindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder converts text to vectors for the chromem index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ChromemIndex is an embedded vector index backed by chromem-go, with one
// collection per profile for isolation.
type ChromemIndex struct {
	db          *chromem.DB
	embedder    Embedder
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func NewChromemIndex(embedder Embedder) *ChromemIndex {
	return &ChromemIndex{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}
}

func (x *ChromemIndex) collection(profileID string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[profileID]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[profileID]; ok {
		return col, nil
	}

	name := "profile_" + profileID
	if profileID == "" {
		name = "global"
	}
	col, err := x.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collections[profileID] = col
	return col, nil
}

func (x *ChromemIndex) Upsert(ctx context.Context, id, profileID, content string, metadata map[string]string) error {
	col, err := x.collection(profileID)
	if err != nil {
		return err
	}

	embedding, err := x.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	meta := map[string]string{"profile_id": profileID}
	for k, v := range metadata {
		meta[k] = v
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  meta,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Query(ctx context.Context, text, profileID string, k int) ([]Match, error) {
	col, err := x.collection(profileID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	// chromem requires nResults <= collection size.
	if count := col.Count(); count < k {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, map[string]string{"profile_id": profileID}, nil)
	if err != nil {
		if isInsufficientDocs(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		d := 1 - float64(r.Similarity)
		if d < 0 {
			d = 0
		}
		if d > 1 {
			d = 1
		}
		matches = append(matches, Match{ID: r.ID, Distance: d})
	}
	return matches, nil
}

func (x *ChromemIndex) Delete(ctx context.Context, profileID, id string) error {
	col, err := x.collection(profileID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Close() error { return nil }

func isInsufficientDocs(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
