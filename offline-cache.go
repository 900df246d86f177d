// Package offlinecache implements the response cache worker of the lab
// application: a versioned HTTP response cache sitting between clients
// and the application's API and static-asset origins. Requests are
// served according to a per-request caching strategy (network-first for
// the API, cache-first with background revalidation for static assets),
// with offline fallbacks when both network and cache come up empty.
package offlinecache

import (
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	cachekey "github.com/anapath-lab/offline-cache/pkg/cache-key"
	snapshot "github.com/anapath-lab/offline-cache/pkg/response-snapshot"
	tee "github.com/anapath-lab/offline-cache/pkg/response-writer-tee"
	"github.com/anapath-lab/offline-cache/store"

	"github.com/rs/zerolog"
)

type Config struct {
	// Storage for the named response stores.
	Stores store.ResponseStore
	// Broadcaster for messages to connected pages. Optional.
	Clients ClientBroadcaster
	// Version of the worker. Store names are derived from it, so
	// bumping the version retires the previous stores on activation.
	Version string
	// CacheNamePrefix is prepended to store names.
	// Defaults to "offline-cache".
	CacheNamePrefix string
	// APIOrigin is the origin serving the remote API.
	APIOrigin url.URL
	// StaticOrigin is the origin serving documents and static assets.
	StaticOrigin url.URL
	// Manifest is the list of essential asset paths pre-cached at
	// install time.
	Manifest []string
	// APIPrefixes are the request path prefixes routed to the API
	// origin with the network-first strategy.
	// Defaults to the lab application's API surface.
	APIPrefixes []string
	// ExcludeHosts lists hosts whose requests are never cached.
	ExcludeHosts []string
	// Routes overrides the routing table derived from APIPrefixes and
	// ExcludeHosts.
	Routes []Route
	// OfflinePath is the pre-cached document served when a document
	// request cannot be satisfied from network or cache.
	OfflinePath string
	// PlaceholderIconPath is the pre-cached image served when an image
	// request cannot be satisfied from network or cache.
	PlaceholderIconPath string
	// StrictInstall aborts the install on the first manifest entry that
	// cannot be fetched. The default is to skip failing entries.
	StrictInstall bool
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Worker is the response cache manager. It implements http.Handler for
// fetch interception and exposes the install / activate / message /
// push lifecycle operations.
type Worker struct {
	stores        store.ResponseStore
	clients       ClientBroadcaster
	version       string
	staticName    string
	runtimeName   string
	apiOrigin     url.URL
	staticOrigin  url.URL
	manifest      []string
	routes        []Route
	offlinePath   string
	iconPath      string
	strictInstall bool
	httpClient    http.Client
	log           zerolog.Logger

	stateMutex sync.RWMutex
	state      State

	// pending tracks background cache work (mirrors, revalidations),
	// keeping the worker alive until the chains settle
	pending sync.WaitGroup
}

const defaultCacheNamePrefix = "offline-cache"

// CreateWorker initializes the cache worker.
// It does not touch storage; call Install and Activate to do that.
func CreateWorker(config Config) *Worker {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	prefix := config.CacheNamePrefix
	if prefix == "" {
		prefix = defaultCacheNamePrefix
	}
	staticName := prefix + "-static-" + config.Version
	runtimeName := prefix + "-runtime-" + config.Version

	// create a child logger and add defaults
	logger = logger.With().
		Str("version", config.Version).
		Str("store", staticName).
		Logger()

	clients := config.Clients
	if clients == nil {
		clients = noopBroadcaster{}
	}

	routes := config.Routes
	if routes == nil {
		routes = defaultRoutes(config.APIPrefixes, config.ExcludeHosts)
	}

	return &Worker{
		stores:        config.Stores,
		clients:       clients,
		version:       config.Version,
		staticName:    staticName,
		runtimeName:   runtimeName,
		apiOrigin:     config.APIOrigin,
		staticOrigin:  config.StaticOrigin,
		manifest:      config.Manifest,
		routes:        routes,
		offlinePath:   config.OfflinePath,
		iconPath:      config.PlaceholderIconPath,
		strictInstall: config.StrictInstall,
		httpClient: http.Client{
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:   logger,
		state: StateInstalling,
	}
}

// Version returns the worker version.
func (w *Worker) Version() string {
	return w.version
}

// CacheName returns the name of the static store for this version.
func (w *Worker) CacheName() string {
	return w.staticName
}

// ServeHTTP implements the http.Handler interface.
// It is the fetch interception point of the worker.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	strategy := w.resolveStrategy(r)
	log := w.log.With().
		Str("method", r.Method).
		Str("url", r.URL.RequestURI()).
		Str("strategy", string(strategy)).
		Logger()

	switch strategy {
	case StrategyPassThrough:
		w.passThrough(rw, r, log)
	case StrategyNetworkFirst:
		w.networkFirst(rw, r, log)
	default:
		w.cacheFirst(rw, r, log)
	}
}

// passThrough pipes the request to its origin without touching the cache.
func (w *Worker) passThrough(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	cs := CacheStatus{}
	cs.Forward(FwdReasonBypass)
	res, err := w.fetch(w.originFor(r), r)
	if err != nil {
		log.Error().Err(err).Msg("Could not reach origin")
		http.Error(rw, "Could not get response", http.StatusBadGateway)
		return
	}
	rw.Header().Add("Cache-Status", cs.String())
	w.send(rw, res, cs, log)
}

// networkFirst fetches from the API origin, mirroring successful
// responses into the runtime store in the background. The stored copy is
// served only when the network fails.
func (w *Worker) networkFirst(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	key := cachekey.ForRequest(r)
	res, err := w.fetch(w.apiOrigin, r)
	if err == nil {
		cs := CacheStatus{}
		cs.Forward(FwdReasonMiss)
		cs.Stored = cacheable(res)
		// set cache-status on the underlying rw only, so the mirrored
		// snapshot does not carry it
		rw.Header().Add("Cache-Status", cs.String())
		saver := tee.NewResponseSaver(rw)
		w.send(saver, res, cs, log)
		w.waitUntil(func() {
			w.mirror(w.runtimeName, key, saver, log)
		})
		return
	}

	log.Debug().Err(err).Msg("Network failed, trying runtime store")
	if entry, ok, matchErr := w.stores.Match(w.runtimeName, key); matchErr != nil {
		log.Error().Err(matchErr).Str("key", key).Msg("Could not read from store")
	} else if ok {
		cs := CacheStatus{}
		cs.Hit()
		w.sendEntry(rw, r, w.runtimeName, entry, cs, log)
		return
	}
	w.sendUnavailable(rw)
}

// cacheFirst serves static assets from the store when possible,
// refreshing the stored copy in the background. Misses go to the
// network; total failure degrades to an offline fallback.
func (w *Worker) cacheFirst(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	key := cachekey.ForRequest(r)
	if entry, ok, err := w.stores.Match(w.staticName, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not read from store")
	} else if ok {
		cs := CacheStatus{}
		cs.Hit()
		w.sendEntry(rw, r, w.staticName, entry, cs, log)
		w.waitUntil(func() {
			w.revalidate(key, log)
		})
		return
	}

	res, err := w.fetch(w.staticOrigin, r)
	if err != nil {
		log.Debug().Err(err).Msg("Network failed, serving offline fallback")
		w.fallback(rw, r, log)
		return
	}

	cs := CacheStatus{}
	cs.Forward(FwdReasonUriMiss)
	cs.Stored = cacheable(res)
	rw.Header().Add("Cache-Status", cs.String())
	saver := tee.NewResponseSaver(rw)
	w.send(saver, res, cs, log)
	if cs.Stored {
		w.waitUntil(func() {
			w.mirror(w.staticName, key, saver, log)
		})
	}
}

// revalidate refreshes a stored static entry from the network.
// Failures are discarded: the stored copy stays in place.
func (w *Worker) revalidate(key string, log zerolog.Logger) {
	req, err := cachekey.RequestFromKey(key)
	if err != nil {
		log.Trace().Err(err).Str("key", key).Msg("Not revalidating")
		return
	}
	res, err := w.fetch(w.staticOrigin, req)
	if err != nil || !cacheable(res) {
		log.Trace().Err(err).Str("key", key).Msg("Revalidation discarded")
		return
	}
	bts, err := snapshot.Marshal(res)
	if err != nil {
		log.Trace().Err(err).Str("key", key).Msg("Could not snapshot revalidated response")
		return
	}
	if err := w.stores.Put(w.staticName, key, store.Entry{FetchedAt: time.Now(), Bytes: bts}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not write to store")
	}
}

// mirror writes a recorded response into the named store.
// A failure to cache never fails the request that triggered it.
func (w *Worker) mirror(name, key string, saver *tee.ResponseSaver, log zerolog.Logger) {
	if !cacheableStatus(saver.StatusCode()) {
		log.Trace().Str("key", key).Int("http-status", saver.StatusCode()).Msg("Non-cacheable response")
		return
	}
	entry := store.Entry{
		FetchedAt: saver.FetchedAt,
		Bytes:     saver.Response(),
	}
	if err := w.stores.Put(name, key, entry); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not write to store")
		return
	}
	log.Trace().Str("key", key).Msg("Store write")
}

// fetch the resource specified in the incoming request from the given origin.
func (w *Worker) fetch(origin url.URL, r *http.Request) (*http.Response, error) {
	uri := origin.String() + r.URL.RequestURI()
	// need to specifically set body to nil on the outgoing request if content is zero length
	// see https://github.com/golang/go/issues/16036
	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, uri, body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	// do not forward connection header, this causes trouble
	req.Header.Del("Connection")
	return w.httpClient.Do(req)
}

// originFor returns the origin a request targets, based on the routing
// table. Requests to an explicitly excluded host go to that host itself;
// anything else not routed to the API goes to the static origin.
func (w *Worker) originFor(r *http.Request) url.URL {
	for _, route := range w.routes {
		if !route.Match(r) {
			continue
		}
		switch route.Strategy {
		case StrategyNetworkFirst:
			return w.apiOrigin
		case StrategyPassThrough:
			return requestOrigin(r)
		}
	}
	return w.staticOrigin
}

// requestOrigin reconstructs the origin a request was addressed to.
func requestOrigin(r *http.Request) url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return url.URL{Scheme: scheme, Host: r.Host}
}

// send writes an origin response to the client.
func (w *Worker) send(rw http.ResponseWriter, res *http.Response, cs CacheStatus, log zerolog.Logger) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(rw.Header(), res.Header)
	rw.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(rw, res.Body)
	if err != nil {
		log.Error().Err(err).Msg("Could not write response body to client")
	}
	w.logRequest(log, cs, res.StatusCode)
	log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

// sendEntry writes a stored response snapshot to the client.
func (w *Worker) sendEntry(rw http.ResponseWriter, r *http.Request, name string, entry store.Entry, cs CacheStatus, log zerolog.Logger) {
	res, err := snapshot.Unmarshal(entry.Bytes, r)
	if err != nil {
		// corrupted entry: drop it and degrade to unavailable
		log.Error().Err(err).Str("key", entry.Key).Msg("Could not read stored response")
		w.stores.Delete(name, entry.Key)
		w.sendUnavailable(rw)
		return
	}
	defer res.Body.Close()
	copyHeader(rw.Header(), res.Header)
	rw.Header().Add("Cache-Status", cs.String())
	rw.WriteHeader(res.StatusCode)
	if _, err := io.Copy(rw, res.Body); err != nil {
		log.Error().Err(err).Msg("Could not write response body to client")
	}
	w.logRequest(log, cs, res.StatusCode)
}

// cacheable reports whether a network response may be stored: a
// successful, complete, same-origin response.
func cacheable(res *http.Response) bool {
	return cacheableStatus(res.StatusCode)
}

func cacheableStatus(statusCode int) bool {
	return statusCode == http.StatusOK
}

func (w *Worker) logRequest(log zerolog.Logger, cs CacheStatus, statusCode int) {
	isHit := 0
	if cs.IsHit() {
		isHit = 1
	}
	log.Debug().
		Str("cache-status", cs.String()).
		Int("http-status", statusCode).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// strip upstream proxy headers, some servers dislike them downstream
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
