package components

import (
	"context"
	"fmt"
	"sync"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/creastat/storage/vectorstore"

	"github.com/creastat/assistant/core"
)

// ContextMemoryConfig holds context memory configuration
type ContextMemoryConfig struct {
	// VectorStore is the long-term knowledge store to search.
	VectorStore vectorstore.VectorStore

	// EmbeddingProvider generates embeddings for queries.
	EmbeddingProvider providers.EmbeddingProvider

	// EmbeddingModel is the model to use for embeddings.
	EmbeddingModel string

	// SourceID filters results to a specific source.
	SourceID string

	// Threshold is the minimum similarity score (0.0-1.0).
	Threshold float32

	// MaxResults is the maximum number of entries to retrieve.
	MaxResults int

	// RecentLimit bounds the retained conversation entries (default 50).
	RecentLimit int

	Logger telemetry.Logger
}

// ContextMemory answers context queries from two layers: recent
// conversation entries recorded from memory update events, and a vector
// store searched by embedding similarity.
type ContextMemory struct {
	config ContextMemoryConfig
	logger telemetry.Logger

	mu     sync.Mutex
	recent []core.ContextEntry
}

// NewContextMemory creates a context memory processor
func NewContextMemory(config ContextMemoryConfig) *ContextMemory {
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.7
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = 50
	}
	return &ContextMemory{
		config: config,
		logger: config.Logger.WithModule("context_memory"),
	}
}

// Name returns the component name
func (c *ContextMemory) Name() string {
	return "context_memory"
}

// Role returns the component role
func (c *ContextMemory) Role() core.Role {
	return core.RoleProcessor
}

// Dependencies returns the components that must start first
func (c *ContextMemory) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (c *ContextMemory) Subscriptions() []core.EventType {
	return []core.EventType{core.EventContextUpdate, core.EventMemoryUpdate}
}

// Initialize verifies the search layer pairing
func (c *ContextMemory) Initialize(_ context.Context) error {
	if c.config.VectorStore != nil && c.config.EmbeddingProvider == nil {
		return fmt.Errorf("context_memory: vector store configured without an embedding provider")
	}
	c.logger.Info("context memory initialized",
		telemetry.Bool("vector_search", c.config.VectorStore != nil),
		telemetry.Int("recent_limit", c.config.RecentLimit))
	return nil
}

// HandleEvent records memory updates and answers context queries
func (c *ContextMemory) HandleEvent(ctx context.Context, ev core.Event) (*core.Event, error) {
	switch p := ev.Payload.(type) {
	case core.MemoryUpdatePayload:
		c.record(p)
		return nil, nil

	case core.ContextQueryPayload:
		entries, err := c.query(ctx, p)
		if err != nil {
			return nil, err
		}
		out := core.NewCorrelatedEvent(core.EventContextResponse, c.Name(), core.ContextResponsePayload{
			Entries: entries,
		}, ev)
		return &out, nil

	default:
		return nil, fmt.Errorf("context_memory: unexpected payload %T for event %s", ev.Payload, ev.Type)
	}
}

func (c *ContextMemory) record(p core.MemoryUpdatePayload) {
	if p.Content == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent = append(c.recent, core.ContextEntry{
		Content:  fmt.Sprintf("%s: %s", p.Role, p.Content),
		SourceID: "conversation",
	})
	if len(c.recent) > c.config.RecentLimit {
		c.recent = c.recent[len(c.recent)-c.config.RecentLimit:]
	}
}

// query combines recent conversation entries with vector search results.
func (c *ContextMemory) query(ctx context.Context, p core.ContextQueryPayload) ([]core.ContextEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = c.config.MaxResults
	}

	c.mu.Lock()
	var entries []core.ContextEntry
	if len(c.recent) > limit {
		entries = append(entries, c.recent[len(c.recent)-limit:]...)
	} else {
		entries = append(entries, c.recent...)
	}
	c.mu.Unlock()

	if c.config.VectorStore == nil || p.Query == "" {
		return entries, nil
	}

	embResp, err := c.config.EmbeddingProvider.GenerateEmbedding(ctx, providers.EmbeddingRequest{
		Model: c.config.EmbeddingModel,
		Text:  p.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("context_memory: generate embedding: %w", err)
	}

	filter := vectorstore.SearchFilter{
		SourceID: c.config.SourceID,
		MinScore: c.config.Threshold,
	}
	results, err := c.config.VectorStore.Search(ctx, embResp.Vector, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("context_memory: vector search: %w", err)
	}

	for _, result := range results {
		if result.Content == "" {
			continue
		}
		entries = append(entries, core.ContextEntry{
			Content:  result.Content,
			Score:    result.Score,
			SourceID: result.SourceID,
		})
	}

	c.logger.Debug("context query answered",
		telemetry.Int("recent_entries", len(entries)-len(results)),
		telemetry.Int("search_results", len(results)))
	return entries, nil
}

// Shutdown closes the vector store when one is configured
func (c *ContextMemory) Shutdown(_ context.Context) error {
	if c.config.VectorStore != nil {
		return c.config.VectorStore.Close()
	}
	return nil
}

// Compile-time interface check.
var _ core.Component = (*ContextMemory)(nil)
