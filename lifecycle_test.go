package offlinecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/anapath-lab/offline-cache/store"
)

func TestActivatePurgesStaleStores(t *testing.T) {
	stores := store.NewMemStore()
	stores.Open("offline-cache-static-1")
	stores.Open("offline-cache-runtime-1")
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer origin.Close()

	newTestWorker(t, origin.URL, Config{Stores: stores, Version: "2"})

	names, err := stores.Names()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(names)
	want := []string{"offline-cache-runtime-2", "offline-cache-static-2"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("Stores after activation: %v", names)
	}
}

func TestLenientInstallSkipsFailingManifestEntries(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.js" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("present"))
	}))
	defer origin.Close()

	w := newTestWorker(t, origin.URL, Config{
		Manifest: []string{"/app.js", "/missing.js", "/styles.css"},
	})

	// both good entries made it despite the failure in between
	for _, target := range []string{"/app.js", "/styles.css"} {
		if body := get(w, target).Body.String(); body != "present" {
			t.Fatalf("Body for %s is %s", target, body)
		}
	}
}

func TestReinstallKeepsEarlierEntriesWhenOriginGone(t *testing.T) {
	stores := store.NewMemStore()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cached"))
	}))
	newTestWorker(t, origin.URL, Config{Stores: stores, Manifest: []string{"/app.js"}})
	origin.Close()

	// re-running install against a dead origin must not clobber the
	// entries that were written the first time around
	w2 := CreateWorker(Config{
		Stores:       stores,
		Version:      "1",
		StaticOrigin: mustParseURL(t, origin.URL),
		APIOrigin:    mustParseURL(t, origin.URL),
		Manifest:     []string{"/app.js"},
		Logger:       testLogger(),
	})
	if err := w2.Install(context.Background()); err != nil {
		t.Fatalf("Lenient install failed: %v", err)
	}
	if err := w2.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if body := get(w2, "/app.js").Body.String(); body != "cached" {
		t.Fatalf("Body is %s", body)
	}
}

func TestStrictInstallAborts(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer origin.Close()

	w := CreateWorker(Config{
		Stores:        store.NewMemStore(),
		Version:       "1",
		StaticOrigin:  mustParseURL(t, origin.URL),
		APIOrigin:     mustParseURL(t, origin.URL),
		Manifest:      []string{"/app.js"},
		StrictInstall: true,
		Logger:        testLogger(),
	})

	if err := w.Install(context.Background()); err == nil {
		t.Fatal("Expected strict install to fail")
	}
	if state := w.State(); state != StateInstalling {
		t.Fatalf("State is %s", state)
	}
}

func TestSkipWaitingPromotesWaitingWorker(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer origin.Close()

	broadcaster := newFakeBroadcaster()
	w := CreateWorker(Config{
		Stores:       store.NewMemStore(),
		Clients:      broadcaster,
		Version:      "2",
		StaticOrigin: mustParseURL(t, origin.URL),
		APIOrigin:    mustParseURL(t, origin.URL),
		Logger:       testLogger(),
	})
	if err := w.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if state := w.State(); state != StateWaiting {
		t.Fatalf("State after install is %s", state)
	}

	reply, err := w.HandleMessage(context.Background(), Message{Type: MsgSkipWaiting})
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Fatalf("Unexpected reply %+v", reply)
	}
	if state := w.State(); state != StateActive {
		t.Fatalf("State is %s", state)
	}

	// pages are told about the controller change
	if len(broadcaster.broadcasts) != 1 || broadcaster.broadcasts[0].Type != MsgUpdateAvailable {
		t.Fatalf("Broadcasts: %+v", broadcaster.broadcasts)
	}
	if broadcaster.broadcasts[0].Version != "2" {
		t.Fatalf("Broadcast version is %s", broadcaster.broadcasts[0].Version)
	}
}
