package proxy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/remoraproj/remora/internal/servicetest"
	"github.com/remoraproj/remora/proxy"
)

func TestReference_ResolvesToProxy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.dataset(t)

	v, err := p.Get(ctx, "organization")
	require.NoError(t, err)
	org, ok := v.(*proxy.Proxy)
	require.True(t, ok)
	require.Equal(t, f.orgID, org.ID())

	// The referent is the registry's proxy, not a copy.
	same, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.Same(t, same, org)
}

func TestReference_AcceptsProxyAndString(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.dataset(t)

	otherOrg := uuid.New()
	require.NoError(t, p.Set(ctx, "organization", otherOrg.String()))

	v, err := p.Get(ctx, "organization")
	require.NoError(t, err)
	require.Equal(t, otherOrg, v.(*proxy.Proxy).ID())

	orgProxy, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.NoError(t, p.Set(ctx, "organization", orgProxy))

	v, err = p.Get(ctx, "organization")
	require.NoError(t, err)
	require.Same(t, orgProxy, v)
}

func TestReference_RejectsWrongType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.dataset(t)

	dsProxy, err := f.dsReg.FetchProxy(f.dsID)
	require.NoError(t, err)
	err = p.Set(ctx, "organization", dsProxy)
	require.Error(t, err, "a Dataset proxy is not an Organization")
}

func TestRefList_ReadsAsProxyList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)

	v, err := org.Get(ctx, "datasets")
	require.NoError(t, err)
	list, ok := v.(*proxy.ProxyList)
	require.True(t, ok)
	require.Equal(t, 1, list.Len())
	require.Equal(t, []uuid.UUID{f.dsID}, list.IDs())

	ds, err := list.At(0)
	require.NoError(t, err)
	require.Equal(t, f.dsID, ds.ID())

	all, err := list.Proxies()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Same(t, ds, all[0])
}

func TestRefList_IsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.NoError(t, org.Sync(ctx, nil))

	require.ErrorIs(t, org.Set(ctx, "datasets", []any{}), proxy.ErrReadOnly)
}

func TestCascade_CreateRefreshesReferencedProxy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Load the dataset so it has a cached snapshot that can go stale.
	ds := f.dataset(t)
	showsBefore := f.dsSvc.Calls(proxy.OpShow)

	// Creating a resource that points at the dataset must re-sync it.
	_, err := f.resReg.Cursor().Create(ctx, proxy.Entity{
		"url":     "https://example.org/data.csv",
		"dataset": ds,
	})
	require.NoError(t, err)
	require.Equal(t, showsBefore+1, f.dsSvc.Calls(proxy.OpShow),
		"trigger-sync reference must refresh the dataset")
}

func TestCascade_UpdateRefreshesOldAndNewReferent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Second organization for the move.
	org2ID := uuid.New()
	otherOrg := servicetest.OrganizationEntity(org2ID, "globex")
	_, err := f.orgReg.FetchProxyForEntity(ctx, otherOrg)
	require.NoError(t, err)

	org1, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.NoError(t, org1.Sync(ctx, nil))
	showsBefore := f.orgSvc.Calls(proxy.OpShow)

	// Move the dataset between organizations.
	ds := f.dataset(t)
	require.NoError(t, ds.Set(ctx, "organization", org2ID.String()))
	require.NoError(t, ds.Sync(ctx, nil))

	require.Equal(t, showsBefore+2, f.orgSvc.Calls(proxy.OpShow),
		"both the old and the new organization must refresh")
}

func TestCascade_DeleteRefreshesReferencedProxy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.NoError(t, org.Sync(ctx, nil))
	showsBefore := f.orgSvc.Calls(proxy.OpShow)

	ds := f.dataset(t)
	require.NoError(t, ds.Delete(ctx, false))
	require.Equal(t, showsBefore+1, f.orgSvc.Calls(proxy.OpShow))
}

func TestSynclist_SkipsErrorProxiesAndDeduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dead, err := f.orgReg.FetchProxy(f.orgID)
	require.NoError(t, err)
	require.NoError(t, dead.Sync(ctx, nil))
	require.NoError(t, dead.Delete(ctx, true))
	require.Equal(t, proxy.StateError, dead.State())

	ds := f.dataset(t)
	showsBefore := f.dsSvc.Calls(proxy.OpShow)
	orgShowsBefore := f.orgSvc.Calls(proxy.OpShow)

	sl := &proxy.Synclist{}
	sl.Add(dead)
	sl.Add(ds)
	sl.Add(ds) // duplicate
	require.Equal(t, 2, sl.Len())

	require.NoError(t, sl.Sync(ctx))
	require.Equal(t, orgShowsBefore, f.orgSvc.Calls(proxy.OpShow),
		"ERROR proxies are skipped")
	require.Equal(t, showsBefore+1, f.dsSvc.Calls(proxy.OpShow),
		"deduplicated proxies sync once")
}
