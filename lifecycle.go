package offlinecache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cachekey "github.com/anapath-lab/offline-cache/pkg/cache-key"
	snapshot "github.com/anapath-lab/offline-cache/pkg/response-snapshot"
	"github.com/anapath-lab/offline-cache/store"
)

// State is the lifecycle state of the worker.
type State string

const (
	// StateInstalling means the worker is pre-caching its manifest.
	StateInstalling State = "installing"
	// StateWaiting means the worker is installed and ready to take over.
	StateWaiting State = "waiting"
	// StateActive means the worker controls all requests.
	StateActive State = "active"
)

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.stateMutex.RLock()
	defer w.stateMutex.RUnlock()
	return w.state
}

func (w *Worker) setState(state State) {
	w.stateMutex.Lock()
	defer w.stateMutex.Unlock()
	w.state = state
}

// Install opens the versioned static store and pre-caches the manifest.
// Each manifest entry is fetched individually; a failing entry is
// skipped unless strict install is configured, in which case the whole
// install aborts. On success the worker signals readiness immediately
// instead of waiting for existing clients to go away.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	if err := w.stores.Open(w.staticName); err != nil {
		return fmt.Errorf("opening store %s: %w", w.staticName, err)
	}
	for _, assetPath := range w.manifest {
		if err := w.precache(ctx, assetPath); err != nil {
			if w.strictInstall {
				return fmt.Errorf("pre-caching %s: %w", assetPath, err)
			}
			w.log.Warn().Err(err).Str("url", assetPath).Msg("Skipping manifest entry")
		}
	}
	w.log.Info().Int("manifest", len(w.manifest)).Msg("Install complete")
	w.setState(StateWaiting)
	return nil
}

// precache fetches a single manifest entry from the static origin and
// stores it.
func (w *Worker) precache(ctx context.Context, assetPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetPath, nil)
	if err != nil {
		return err
	}
	res, err := w.fetch(w.staticOrigin, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	bts, err := snapshot.Marshal(res)
	if err != nil {
		return err
	}
	key := cachekey.ForPath(assetPath)
	w.log.Trace().Str("key", key).Msg("Pre-caching manifest entry")
	return w.stores.Put(w.staticName, key, store.Entry{
		FetchedAt: time.Now(),
		Bytes:     bts,
	})
}

// Activate purges every store whose name does not belong to the current
// version, opens the runtime store, and takes control of connected
// clients. Clients are notified of the controller change.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.stores.Names()
	if err != nil {
		return fmt.Errorf("listing stores: %w", err)
	}
	for _, name := range names {
		if name == w.staticName || name == w.runtimeName {
			continue
		}
		w.log.Info().Str("stale", name).Msg("Purging stale store")
		if _, err := w.stores.DeleteStore(name); err != nil {
			return fmt.Errorf("purging store %s: %w", name, err)
		}
	}
	if err := w.stores.Open(w.runtimeName); err != nil {
		return fmt.Errorf("opening store %s: %w", w.runtimeName, err)
	}
	w.setState(StateActive)
	w.log.Info().Msg("Worker active")
	w.clients.Broadcast(Message{Type: MsgUpdateAvailable, Version: w.version})
	return nil
}

// waitUntil keeps the worker alive until the given background chain
// settles, mirroring the event-lifetime extension of the host. Work is
// never cancelled once issued.
func (w *Worker) waitUntil(fn func()) {
	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		fn()
	}()
}

// Wait blocks until all background cache work has settled.
func (w *Worker) Wait() {
	w.pending.Wait()
}
