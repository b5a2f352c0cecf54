package proxy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/remoraproj/remora/internal/servicetest"
	"github.com/remoraproj/remora/proxy"
)

// fixture wires a catalog over in-memory services for the Organization /
// Dataset / Resource schema trio, pre-seeded with one organization owning
// one dataset. Registries default to autosync off so tests control every
// round trip.
type fixture struct {
	cat *proxy.Catalog

	orgSvc *servicetest.FakeService
	dsSvc  *servicetest.FakeService
	resSvc *servicetest.FakeService

	orgReg *proxy.Registry
	dsReg  *proxy.Registry
	resReg *proxy.Registry

	orgID uuid.UUID
	dsID  uuid.UUID
}

func newFixture(t *testing.T, regOpts ...proxy.RegistryOption) *fixture {
	t.Helper()

	f := &fixture{
		orgID: uuid.New(),
		dsID:  uuid.New(),
	}
	f.orgSvc = servicetest.New("Organization",
		servicetest.WithEntity(servicetest.OrganizationEntity(f.orgID, "acme", f.dsID)))
	f.dsSvc = servicetest.New("Dataset",
		servicetest.WithEntity(servicetest.DatasetEntity(f.dsID, "wind-data", f.orgID)))
	f.resSvc = servicetest.New("Resource")

	f.cat = proxy.NewCatalog(
		proxy.WithDefaultSource("organization", func(ctx context.Context) (any, error) {
			return f.orgID.String(), nil
		}),
	)

	opts := append([]proxy.RegistryOption{proxy.WithAutosync(false)}, regOpts...)

	var err error
	f.orgReg, err = f.cat.Register(servicetest.OrganizationSchema(), f.orgSvc, opts...)
	require.NoError(t, err)
	f.dsReg, err = f.cat.Register(servicetest.DatasetSchema(), f.dsSvc, opts...)
	require.NoError(t, err)
	f.resReg, err = f.cat.Register(servicetest.ResourceSchema(), f.resSvc, opts...)
	require.NoError(t, err)

	t.Cleanup(f.cat.Close)
	return f
}

// dataset returns the seeded dataset's proxy, loaded to CLEAN.
func (f *fixture) dataset(t *testing.T) *proxy.Proxy {
	t.Helper()
	p, err := f.dsReg.FetchProxy(f.dsID)
	require.NoError(t, err)
	require.NoError(t, p.Sync(context.Background(), nil))
	require.Equal(t, proxy.StateClean, p.State())
	return p
}
