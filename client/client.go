// Package client ties the configuration and the synchronization layer
// together: it builds a catalog from a config, applies the configured
// defaults to every registry it creates, and exposes the catalog's
// facilities under one handle.
//
// Transport is not provided here. Callers register one proxy.Service per
// entity type; the service owns endpoints, authentication and retries,
// typically built from the active Profile.
package client

import (
	"context"
	"fmt"

	"github.com/remoraproj/remora/config"
	"github.com/remoraproj/remora/internal/log"
	"github.com/remoraproj/remora/proxy"
)

// Client is the top-level handle of the synchronization layer.
type Client struct {
	cfg     config.Config
	profile config.Profile
	catalog *proxy.Catalog
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	profileName string
	catalogOpts []proxy.CatalogOption
}

// WithProfile selects a named profile instead of the configured default.
func WithProfile(name string) Option {
	return func(s *settings) { s.profileName = name }
}

// WithCatalogOptions forwards options to the underlying catalog, e.g. a
// vocabulary fetcher or default sources.
func WithCatalogOptions(opts ...proxy.CatalogOption) Option {
	return func(s *settings) { s.catalogOpts = append(s.catalogOpts, opts...) }
}

// New builds a client from a configuration. The configured log file, if
// any, is opened here.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if cfg.LogFile != "" {
		if _, err := log.Init(cfg.LogFile); err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
	}

	var profile config.Profile
	if len(cfg.Profiles) > 0 {
		p, err := cfg.Profile(s.profileName)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	catOpts := s.catalogOpts
	if cfg.Client.VocabularyTTL > 0 {
		catOpts = append(catOpts, proxy.WithVocabularyTTL(cfg.Client.VocabularyTTL))
	}

	return &Client{
		cfg:     cfg,
		profile: profile,
		catalog: proxy.NewCatalog(catOpts...),
	}, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() config.Config { return c.cfg }

// Profile returns the active profile.
func (c *Client) Profile() config.Profile { return c.profile }

// Catalog returns the underlying catalog.
func (c *Client) Catalog() *proxy.Catalog { return c.catalog }

// Register creates the registry for an entity type, seeded with the
// configured update method and autosync behavior. Explicit options win.
func (c *Client) Register(schema *proxy.Schema, svc proxy.Service, opts ...proxy.RegistryOption) (*proxy.Registry, error) {
	defaults := []proxy.RegistryOption{
		proxy.WithAutosync(c.cfg.Client.Autosync),
	}
	if c.cfg.Client.UpdateMethod == "update" {
		defaults = append(defaults, proxy.WithUpdateOperation(proxy.OpUpdate))
	} else {
		defaults = append(defaults, proxy.WithUpdateOperation(proxy.OpPatch))
	}
	return c.catalog.Register(schema, svc, append(defaults, opts...)...)
}

// Registry returns the registry of the named entity type.
func (c *Client) Registry(name string) (*proxy.Registry, error) {
	return c.catalog.RegistryFor(name)
}

// Cursor returns the collection-level API of the named entity type.
func (c *Client) Cursor(name string) (*proxy.Cursor, error) {
	r, err := c.catalog.RegistryFor(name)
	if err != nil {
		return nil, err
	}
	return r.Cursor(), nil
}

// DeferredSync groups several proxy mutations into per-proxy single
// commits; see proxy.DeferredSync.
func (c *Client) DeferredSync(ctx context.Context, fn func() error, proxies ...*proxy.Proxy) error {
	return proxy.DeferredSync(ctx, fn, proxies...)
}

// Close releases the catalog's resources.
func (c *Client) Close() {
	c.catalog.Close()
}
