package proxy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/remoraproj/remora/internal/pubsub"
	"github.com/remoraproj/remora/internal/servicetest"
	"github.com/remoraproj/remora/proxy"
)

func TestCursor_CreateReturnsCleanProxy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.dsReg.Cursor().Create(ctx, proxy.Entity{
		"name":  "tide-data",
		"title": "Tide Levels",
	})
	require.NoError(t, err)
	require.Equal(t, proxy.StateClean, p.State())
	require.NotEqual(t, uuid.Nil, p.ID())
	require.Equal(t, 1, f.dsSvc.Calls(proxy.OpCreate))

	// Create-time defaults apply here too.
	stored, ok := f.dsSvc.Stored(p.ID())
	require.True(t, ok)
	require.Equal(t, f.orgID.String(), stored["organization"])

	// The proxy occupies its registry slot.
	again, err := f.dsReg.FetchProxy(p.ID())
	require.NoError(t, err)
	require.Same(t, p, again)
}

func TestCursor_CreateRejectsInvalidFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dsReg.Cursor().Create(ctx, proxy.Entity{
		"name":  "Not A Valid Name",
		"title": "whatever",
	})
	require.Error(t, err)
	require.Equal(t, 0, f.dsSvc.Calls(proxy.OpCreate))
}

func TestCursor_CreateSurfacesServerRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dsSvc.FailNext(proxy.OpCreate, servicetest.ErrRejected)
	_, err := f.dsReg.Cursor().Create(ctx, proxy.Entity{
		"name":  "tide-data",
		"title": "Tide Levels",
	})
	var oerr *proxy.OperationError
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, proxy.OpCreate, oerr.Op)
}

func TestCursor_GetLoadsAndGetMissingIsNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cur := f.dsReg.Cursor()

	p, err := cur.Get(ctx, f.dsID)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, proxy.StateClean, p.State())

	missing, err := cur.Get(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing, "a missing entity is not an error")
}

func TestCursor_Exists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cur := f.dsReg.Cursor()

	ok, err := cur.Exists(ctx, f.dsID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cur.Exists(ctx, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)

	// Existence checks never populate the registry.
	require.Equal(t, 0, f.dsReg.Len())
}

func TestCursor_ListAndFetchPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.orgSvc.Add(servicetest.OrganizationEntity(uuid.New(), "org", uuid.New()))
	}
	cur := f.orgReg.Cursor()

	ids, err := cur.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	rest, err := cur.List(ctx, 3, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)

	all, err := cur.List(ctx, 0, 0) // 0 means "up to MaxFetch"
	require.NoError(t, err)
	require.Len(t, all, 5)

	proxies, err := cur.Fetch(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	for _, p := range proxies {
		require.Equal(t, proxy.StateClean, p.State())
	}
	require.Equal(t, 2, f.orgReg.Len())
}

func TestCatalog_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := f.cat.Events().Subscribe(ctx)

	p, err := f.dsReg.Cursor().Create(ctx, proxy.Entity{
		"name":  "tide-data",
		"title": "Tide Levels",
	})
	require.NoError(t, err)

	ev := <-events
	require.Equal(t, pubsub.CreatedEvent, ev.Type)
	require.Equal(t, proxy.EntityEvent{Type: "Dataset", ID: p.ID()}, ev.Payload)

	require.NoError(t, p.Set(ctx, "title", "Tide Levels v2"))
	require.NoError(t, p.Sync(ctx, nil))
	ev = <-events
	require.Equal(t, pubsub.UpdatedEvent, ev.Type)
	require.Equal(t, p.ID(), ev.Payload.ID)

	id := p.ID()
	require.NoError(t, p.Delete(ctx, false))
	ev = <-events
	require.Equal(t, pubsub.DeletedEvent, ev.Type)
	require.Equal(t, id, ev.Payload.ID)
}

func TestCatalog_PublishesPurgeEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := f.cat.Events().Subscribe(ctx)
	ds := f.dataset(t)
	require.NoError(t, ds.Delete(ctx, true))

	ev := <-events
	require.Equal(t, pubsub.PurgedEvent, ev.Type)
	require.Equal(t, proxy.EntityEvent{Type: "Dataset", ID: f.dsID}, ev.Payload)
}
