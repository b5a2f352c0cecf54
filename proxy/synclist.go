package proxy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/internal/log"
)

// Synclist accumulates proxies whose server copy may have gone stale as a
// side effect of an operation on another entity: the referents of
// trigger-sync reference fields. After the primary operation succeeds, the
// collected proxies are re-synced so their collections reflect the change.
type Synclist struct {
	pending []*Proxy
}

// Add queues a proxy for re-sync. Each proxy is queued at most once.
func (sl *Synclist) Add(p *Proxy) {
	if p == nil {
		return
	}
	for _, q := range sl.pending {
		if q == p {
			return
		}
	}
	sl.pending = append(sl.pending, p)
}

// Len returns the number of queued proxies.
func (sl *Synclist) Len() int { return len(sl.pending) }

// collect queues the referents of every trigger-sync reference field of p.
func (sl *Synclist) collect(p *Proxy) {
	if p.attr == nil {
		return
	}
	for _, f := range p.Schema().Fields() {
		if !f.TriggerSync() {
			continue
		}
		switch rf := f.(type) {
		case *Reference:
			sl.addRef(p, rf.Target(), p.attr[rf.Name()])
		case *RefList:
			if ids, ok := p.attr[rf.Name()].([]uuid.UUID); ok {
				for _, id := range ids {
					sl.addID(p, rf.Target(), id)
				}
			}
		}
	}
}

func (sl *Synclist) addRef(p *Proxy, target string, v any) {
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return
	}
	sl.addID(p, target, id)
}

func (sl *Synclist) addID(p *Proxy, target string, id uuid.UUID) {
	reg, err := p.registry.catalog.RegistryFor(target)
	if err != nil {
		log.Warn(log.CatCascade, "referent type not registered", "type", target)
		return
	}
	ref, err := reg.FetchProxy(id)
	if err != nil {
		return
	}
	sl.Add(ref)
}

// CollectCreate queues the referents affected by creating p.
func (sl *Synclist) CollectCreate(p *Proxy) { sl.collect(p) }

// CollectUpdate queues the referents affected by updating p. Both the old
// and new referent of a changed reference are stale, so the pre-change
// values recorded in the change map are collected too.
func (sl *Synclist) CollectUpdate(p *Proxy) {
	sl.collect(p)
	if p.changed == nil {
		return
	}
	for _, f := range p.Schema().Fields() {
		if !f.TriggerSync() {
			continue
		}
		rf, ok := f.(*Reference)
		if !ok {
			continue
		}
		if old, ok := p.changed[rf.Name()]; ok {
			sl.addRef(p, rf.Target(), old)
		}
	}
}

// CollectDelete queues the referents affected by deleting p.
func (sl *Synclist) CollectDelete(p *Proxy) { sl.collect(p) }

// CollectFields queues referents named directly in a creation field map,
// before any proxy exists for the new entity.
func (sl *Synclist) CollectFields(r *Registry, fields Entity) {
	for _, f := range r.schema.Fields() {
		if !f.TriggerSync() {
			continue
		}
		rf, ok := f.(*Reference)
		if !ok {
			continue
		}
		v, ok := fields[rf.Name()]
		if !ok {
			continue
		}
		switch rv := v.(type) {
		case *Proxy:
			sl.Add(rv)
		case uuid.UUID:
			sl.addIDFrom(r, rf.Target(), rv)
		case string:
			if id, err := uuid.Parse(rv); err == nil {
				sl.addIDFrom(r, rf.Target(), id)
			}
		}
	}
}

func (sl *Synclist) addIDFrom(r *Registry, target string, id uuid.UUID) {
	reg, err := r.catalog.RegistryFor(target)
	if err != nil {
		return
	}
	ref, err := reg.FetchProxy(id)
	if err != nil {
		return
	}
	sl.Add(ref)
}

// Sync re-syncs every queued proxy. Proxies that moved to ERROR in the
// meantime are skipped. Failures do not stop the sweep; they are joined
// and returned at the end.
func (sl *Synclist) Sync(ctx context.Context) error {
	if len(sl.pending) == 0 {
		return nil
	}
	log.Debug(log.CatCascade, "cascade re-sync", "proxies", len(sl.pending))
	var errs []error
	for _, p := range sl.pending {
		if p.State() == StateError {
			continue
		}
		if err := p.Sync(ctx, nil); err != nil {
			log.ErrorErr(log.CatCascade, "cascade re-sync failed", err, "desc", p.describe())
			errs = append(errs, err)
		}
	}
	sl.pending = nil
	return errors.Join(errs...)
}
