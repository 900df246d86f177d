package offlinecache

import (
	"net/http"
	"strings"
)

// Strategy selects how a request is served relative to the cache.
type Strategy string

const (
	// StrategyNetworkFirst prefers a live fetch, falling back to the
	// runtime store only on network failure.
	StrategyNetworkFirst Strategy = "network-first"
	// StrategyCacheFirst returns stored content immediately and
	// refreshes it in the background.
	StrategyCacheFirst Strategy = "cache-first"
	// StrategyPassThrough forwards the request uncached.
	StrategyPassThrough Strategy = "pass-through"
)

// Route binds a request predicate to a caching strategy.
// The first matching route wins.
type Route struct {
	Match    func(*http.Request) bool
	Strategy Strategy
}

// defaultAPIPrefixes is the path surface of the lab API.
var defaultAPIPrefixes = []string{
	"/patients",
	"/medecins",
	"/comptes-rendus",
	"/paiements",
	"/api/",
}

// defaultRoutes builds the routing table used when none is configured:
// excluded hosts pass through, API paths are network-first, and
// everything else is treated as a static asset.
func defaultRoutes(apiPrefixes, excludeHosts []string) []Route {
	if apiPrefixes == nil {
		apiPrefixes = defaultAPIPrefixes
	}
	routes := make([]Route, 0, 2)
	if len(excludeHosts) > 0 {
		routes = append(routes, Route{
			Match:    matchHosts(excludeHosts),
			Strategy: StrategyPassThrough,
		})
	}
	routes = append(routes, Route{
		Match:    matchPathPrefixes(apiPrefixes),
		Strategy: StrategyNetworkFirst,
	})
	return routes
}

// resolveStrategy picks the strategy for a request.
// Non-GET requests always pass through uncached.
func (w *Worker) resolveStrategy(r *http.Request) Strategy {
	if r.Method != http.MethodGet {
		return StrategyPassThrough
	}
	for _, route := range w.routes {
		if route.Match(r) {
			return route.Strategy
		}
	}
	return StrategyCacheFirst
}

func matchPathPrefixes(prefixes []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return true
			}
		}
		return false
	}
}

func matchHosts(hosts []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		for _, host := range hosts {
			if r.Host == host || r.URL.Host == host {
				return true
			}
		}
		return false
	}
}
