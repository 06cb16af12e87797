package documents

import (
	"context"
	"maps"
	"sync"

	"rwagate/internal/evidence/providers"
)

const extractorID = "static-extractor"

// StaticExtractor returns fields registered for a reference. It stands in for
// OCR, which runs outside this service.
type StaticExtractor struct {
	mu     sync.RWMutex
	fields map[providers.DocumentRef]providers.Fields
}

func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{fields: make(map[providers.DocumentRef]providers.Fields)}
}

// Register records the fields extraction should return for ref.
func (e *StaticExtractor) Register(ref providers.DocumentRef, fields providers.Fields) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields[ref] = maps.Clone(fields)
}

func (e *StaticExtractor) Extract(ctx context.Context, ref providers.DocumentRef) (providers.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, providers.Normalize(extractorID, err)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	fields, ok := e.fields[ref]
	if !ok {
		return nil, providers.NewProviderError(providers.ErrorNotFound, extractorID, "no extraction for document", nil)
	}
	return maps.Clone(fields), nil
}
