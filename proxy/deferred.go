package proxy

import (
	"context"
	"fmt"

	"github.com/remoraproj/remora/internal/log"
)

// DeferredSync runs fn with autosync suspended on the given proxies, then
// commits their accumulated changes, one server round trip per dirty
// proxy. It is the grouping primitive behind Proxy.Update.
//
// Semantics:
//   - If fn fails, every tracked proxy is rolled back to its pre-scope
//     values and fn's error is returned; nothing reaches the server.
//   - If fn succeeds, each DIRTY tracked proxy is synced. Proxies whose
//     sync fails are rolled back; the rest keep their committed state. The
//     failures are reported together as a *DeferredSyncError.
//   - Autosync flags are restored either way.
//
// Passing the same proxy twice is an error, detected before fn runs.
func DeferredSync(ctx context.Context, fn func() error, proxies ...*Proxy) error {
	seen := make(map[*Proxy]struct{}, len(proxies))
	for _, p := range proxies {
		if p == nil {
			return fmt.Errorf("deferred sync: nil proxy")
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("deferred sync: %s tracked twice", p.describe())
		}
		seen[p] = struct{}{}
	}

	saved := make([]bool, len(proxies))
	for i, p := range proxies {
		saved[i] = p.autosync
		p.autosync = false
	}
	restore := func() {
		for i, p := range proxies {
			p.autosync = saved[i]
		}
	}

	if err := fn(); err != nil {
		for _, p := range proxies {
			if p.State() == StateDirty {
				p.Reset()
			}
		}
		restore()
		return err
	}
	restore()

	var failures []SyncFailure
	for _, p := range proxies {
		if p.State() != StateDirty {
			continue
		}
		if err := p.Sync(ctx, nil); err != nil {
			log.ErrorErr(log.CatSync, "deferred sync failed", err, "desc", p.describe())
			if p.State() == StateDirty {
				p.Reset()
			}
			failures = append(failures, SyncFailure{Proxy: p, Err: err})
		}
	}
	if len(failures) > 0 {
		return &DeferredSyncError{Failures: failures}
	}
	return nil
}
