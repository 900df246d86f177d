package offlinecache

import (
	"net/http"
	"path"
	"strings"

	cachekey "github.com/anapath-lab/offline-cache/pkg/cache-key"

	"github.com/rs/zerolog"
)

// resourceKind is the coarse resource classification used to pick an
// offline fallback.
type resourceKind int

const (
	resourceOther resourceKind = iota
	resourceDocument
	resourceImage
	resourceStylesheet
)

// minimalStylesheet is served in place of stylesheets that cannot be
// fetched, so offline documents render without request errors.
const minimalStylesheet = "/* offline */\nbody{font-family:sans-serif}\n"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".webp": true,
	".ico":  true,
}

// classifyResource determines the kind of resource a request is after,
// based on the Accept header and the path extension.
func classifyResource(r *http.Request) resourceKind {
	accept := r.Header.Get("Accept")
	ext := strings.ToLower(path.Ext(r.URL.Path))
	switch {
	case strings.Contains(accept, "text/html"):
		return resourceDocument
	case ext == ".css" || strings.Contains(accept, "text/css"):
		return resourceStylesheet
	case imageExtensions[ext] || strings.HasPrefix(accept, "image/"):
		return resourceImage
	case ext == "" || ext == ".html" || ext == ".htm":
		return resourceDocument
	}
	return resourceOther
}

// fallback produces an offline response for a static request that could
// not be satisfied from network or cache: the offline document for
// pages, the placeholder icon for images, a minimal stylesheet for CSS,
// and a plain-text 503 for everything else.
func (w *Worker) fallback(rw http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	cs := CacheStatus{}
	cs.Forward(FwdReasonOffline)

	switch classifyResource(r) {
	case resourceDocument:
		if w.serveFallbackAsset(rw, r, w.offlinePath, cs, log) {
			return
		}
	case resourceImage:
		if w.serveFallbackAsset(rw, r, w.iconPath, cs, log) {
			return
		}
	case resourceStylesheet:
		rw.Header().Set("Content-Type", "text/css; charset=utf-8")
		rw.Header().Add("Cache-Status", cs.String())
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte(minimalStylesheet))
		w.logRequest(log, cs, http.StatusOK)
		return
	}
	w.sendUnavailable(rw)
	w.logRequest(log, cs, http.StatusServiceUnavailable)
}

// serveFallbackAsset serves a pre-cached fallback asset from the static
// store. It reports whether the asset was found and served.
func (w *Worker) serveFallbackAsset(rw http.ResponseWriter, r *http.Request, assetPath string, cs CacheStatus, log zerolog.Logger) bool {
	if assetPath == "" {
		return false
	}
	entry, ok, err := w.stores.Match(w.staticName, cachekey.ForPath(assetPath))
	if err != nil {
		log.Error().Err(err).Str("path", assetPath).Msg("Could not read fallback asset")
		return false
	}
	if !ok {
		log.Debug().Str("path", assetPath).Msg("Fallback asset not cached")
		return false
	}
	w.sendEntry(rw, r, w.staticName, entry, cs, log)
	return true
}

// sendUnavailable writes the synthetic service-unavailable response used
// when no cache, no network and no fallback asset exist.
func (w *Worker) sendUnavailable(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	cs := CacheStatus{}
	cs.Forward(FwdReasonOffline)
	rw.Header().Add("Cache-Status", cs.String())
	rw.WriteHeader(http.StatusServiceUnavailable)
	rw.Write([]byte("Service unavailable: you appear to be offline\n"))
}
