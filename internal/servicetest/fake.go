// Package servicetest provides an in-memory proxy.Service for tests: a
// deterministic stand-in for the remote entity API with failure injection
// and call counting.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/proxy"
)

// FakeService is an in-memory proxy.Service. Safe for concurrent use.
type FakeService struct {
	schema string

	mu       sync.Mutex
	entities map[uuid.UUID]proxy.Entity
	calls    map[proxy.Operation]int
	failNext map[proxy.Operation]error
	newID    func() uuid.UUID
}

// FakeOption configures a FakeService.
type FakeOption func(*FakeService)

// WithEntity seeds one entity. The entity must carry an "id" wire field.
func WithEntity(e proxy.Entity) FakeOption {
	return func(f *FakeService) {
		id := uuid.MustParse(e["id"].(string))
		f.entities[id] = clone(e)
	}
}

// WithIDGenerator overrides how created entities get their identifiers,
// for tests that need predictable ids.
func WithIDGenerator(gen func() uuid.UUID) FakeOption {
	return func(f *FakeService) { f.newID = gen }
}

// New builds a fake service for the named entity type.
func New(schema string, opts ...FakeOption) *FakeService {
	f := &FakeService{
		schema:   schema,
		entities: map[uuid.UUID]proxy.Entity{},
		calls:    map[proxy.Operation]int{},
		failNext: map[proxy.Operation]error{},
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add stores one more entity after construction. Like WithEntity, the
// entity must carry an "id" wire field.
func (f *FakeService) Add(e proxy.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.MustParse(e["id"].(string))
	f.entities[id] = clone(e)
}

// FailNext makes the next call of the given operation fail with err.
func (f *FakeService) FailNext(op proxy.Operation, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = err
}

// Calls returns how many times the given operation was invoked.
func (f *FakeService) Calls(op proxy.Operation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Len returns the number of stored entities.
func (f *FakeService) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities)
}

// Stored returns a copy of the stored entity, if present.
func (f *FakeService) Stored(id uuid.UUID) (proxy.Entity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return nil, false
	}
	return clone(e), true
}

// begin counts the call and pops a pending failure injection.
func (f *FakeService) begin(op proxy.Operation) error {
	f.calls[op]++
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *FakeService) notFound(id uuid.UUID, op proxy.Operation) error {
	return &proxy.NotFoundError{Schema: f.schema, ID: id, Op: op}
}

func (f *FakeService) Show(ctx context.Context, id uuid.UUID) (proxy.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpShow); err != nil {
		return nil, err
	}
	e, ok := f.entities[id]
	if !ok {
		return nil, f.notFound(id, proxy.OpShow)
	}
	return clone(e), nil
}

func (f *FakeService) Create(ctx context.Context, fields proxy.Entity) (proxy.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpCreate); err != nil {
		return nil, err
	}
	id := f.newID()
	e := clone(fields)
	e["id"] = id.String()
	if _, ok := e["state"]; !ok {
		e["state"] = "active"
	}
	f.entities[id] = e
	return clone(e), nil
}

func (f *FakeService) Update(ctx context.Context, id uuid.UUID, fields proxy.Entity) (proxy.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpUpdate); err != nil {
		return nil, err
	}
	if _, ok := f.entities[id]; !ok {
		return nil, f.notFound(id, proxy.OpUpdate)
	}
	e := clone(fields)
	e["id"] = id.String()
	f.entities[id] = e
	return clone(e), nil
}

func (f *FakeService) Patch(ctx context.Context, id uuid.UUID, changed proxy.Entity) (proxy.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpPatch); err != nil {
		return nil, err
	}
	e, ok := f.entities[id]
	if !ok {
		return nil, f.notFound(id, proxy.OpPatch)
	}
	for k, v := range changed {
		e[k] = v
	}
	e["id"] = id.String()
	return clone(e), nil
}

func (f *FakeService) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpDelete); err != nil {
		return err
	}
	e, ok := f.entities[id]
	if !ok {
		return f.notFound(id, proxy.OpDelete)
	}
	e["state"] = "deleted"
	return nil
}

func (f *FakeService) Purge(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpPurge); err != nil {
		return err
	}
	if _, ok := f.entities[id]; !ok {
		return f.notFound(id, proxy.OpPurge)
	}
	delete(f.entities, id)
	return nil
}

func (f *FakeService) List(ctx context.Context, limit, offset int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpList); err != nil {
		return nil, err
	}
	ids := f.sortedIDs()
	return page(ids, limit, offset), nil
}

func (f *FakeService) Fetch(ctx context.Context, limit, offset int) ([]proxy.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(proxy.OpFetch); err != nil {
		return nil, err
	}
	ids := page(f.sortedIDs(), limit, offset)
	out := make([]proxy.Entity, 0, len(ids))
	for _, s := range ids {
		out = append(out, clone(f.entities[uuid.MustParse(s)]))
	}
	return out, nil
}

func (f *FakeService) sortedIDs() []string {
	ids := make([]string, 0, len(f.entities))
	for id := range f.entities {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return ids
}

func page(ids []string, limit, offset int) []string {
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func clone(e proxy.Entity) proxy.Entity {
	out := make(proxy.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

var _ proxy.Service = (*FakeService)(nil)

// ErrRejected is a generic server-side rejection for failure injection.
var ErrRejected = fmt.Errorf("rejected by server")
