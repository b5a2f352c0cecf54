package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/internal/log"
	"github.com/remoraproj/remora/internal/pubsub"
)

// EntityEvent is the payload of entity lifecycle events published by the
// catalog's broker.
type EntityEvent struct {
	Type string
	ID   uuid.UUID
}

// DefaultSource produces a creation-time default value, e.g. the current
// organization or the authenticated user. Fields opt in with the
// CreateDefault option.
type DefaultSource func(ctx context.Context) (any, error)

// Catalog is the root object of the synchronization layer: it owns one
// registry per entity type, the creation-default sources, the vocabulary
// index and the lifecycle event broker.
type Catalog struct {
	mu         sync.RWMutex
	registries map[string]*Registry

	defaults map[string]DefaultSource

	vocabFetch VocabularyFetcher
	vocabTTL   time.Duration
	vocabs     *VocabularyIndex

	events *pubsub.Broker[EntityEvent]
}

// CatalogOption configures a catalog.
type CatalogOption func(*Catalog)

// WithDefaultSource registers a named creation-default source.
func WithDefaultSource(name string, src DefaultSource) CatalogOption {
	return func(c *Catalog) { c.defaults[name] = src }
}

// WithVocabularyFetcher installs the fetcher backing the vocabulary index.
func WithVocabularyFetcher(fetch VocabularyFetcher) CatalogOption {
	return func(c *Catalog) { c.vocabFetch = fetch }
}

// WithVocabularyTTL sets how long a fetched vocabulary snapshot stays
// fresh.
func WithVocabularyTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) { c.vocabTTL = ttl }
}

// NewCatalog builds a catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		registries: map[string]*Registry{},
		defaults:   map[string]DefaultSource{},
		vocabTTL:   DefaultVocabularyTTL,
		events:     pubsub.NewBroker[EntityEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.vocabFetch != nil {
		c.vocabs = NewVocabularyIndex(c.vocabFetch, c.vocabTTL)
	}
	return c
}

// Register creates the registry for an entity type, backed by the given
// service. Registering a type twice is an error.
func (c *Catalog) Register(schema *Schema, svc Service, opts ...RegistryOption) (*Registry, error) {
	if schema == nil {
		return nil, fmt.Errorf("register: nil schema")
	}
	if svc == nil {
		return nil, fmt.Errorf("register %s: nil service", schema.Name())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registries[schema.Name()]; ok {
		return nil, fmt.Errorf("entity type %q is already registered", schema.Name())
	}
	r := newRegistry(c, schema, svc, opts...)
	c.registries[schema.Name()] = r
	log.Info(log.CatRegistry, "registry created", "type", schema.Name(), "update_op", r.updateOp)
	return r, nil
}

// RegistryFor returns the registry for the named entity type.
func (c *Catalog) RegistryFor(name string) (*Registry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.registries[name]
	if !ok {
		return nil, fmt.Errorf("entity type %q is not registered", name)
	}
	return r, nil
}

// defaultValue resolves a named creation-default source.
func (c *Catalog) defaultValue(ctx context.Context, source string) (any, bool, error) {
	src, ok := c.defaults[source]
	if !ok {
		return nil, false, fmt.Errorf("unknown default source %q", source)
	}
	v, err := src(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("default source %q: %w", source, err)
	}
	return v, true, nil
}

// Events returns the lifecycle event broker. Subscribers receive created,
// updated, deleted and purged events for every registered type.
func (c *Catalog) Events() *pubsub.Broker[EntityEvent] { return c.events }

// Vocabularies returns the vocabulary index, or nil if no fetcher was
// installed.
func (c *Catalog) Vocabularies() *VocabularyIndex { return c.vocabs }

// Stats returns the number of cached proxies per entity type.
func (c *Catalog) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.registries))
	for name, r := range c.registries {
		out[name] = r.Len()
	}
	return out
}

// Close shuts down the event broker. Registries stay usable; only event
// delivery stops.
func (c *Catalog) Close() {
	c.events.Close()
}
