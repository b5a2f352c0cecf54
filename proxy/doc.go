// Package proxy implements the entity-proxy and synchronization core of
// remora.
//
// A Proxy is the local, typed, stateful mirror of one remote entity. Proxies
// are managed by a Registry, which guarantees that at most one live proxy
// exists per entity identifier, so every mutation funnels through a single
// object. Registries of different entity types form a Catalog.
//
// A proxy is in one of four states:
//   - EMPTY: no entity data has been loaded yet
//   - CLEAN: the data loaded by the last Sync is unchanged
//   - DIRTY: the data has local edits since the last Sync
//   - ERROR: the proxy is no longer valid (the entity was deleted)
//
// Field access is schema-driven: a Schema binds named Fields (Property,
// NameID, Reference, RefList, Extras, TagList) to an entity type, and each
// field validates, converts and dirty-tracks values stored in the proxy's
// attribute map. Mutations autocommit unless batched inside a DeferredSync
// scope.
//
// The remote side is abstracted behind the Service interface; this package
// defines no transport.
package proxy
