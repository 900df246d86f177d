package offlinecache

import "fmt"

// FwdReason explains why a response was forwarded from the network
// instead of served from the cache. Reasons follow the Cache-Status
// header vocabulary.
type FwdReason string

const (
	// FwdReasonBypass means the worker was configured to not handle
	// this request.
	FwdReasonBypass FwdReason = "bypass"
	// FwdReasonMiss means no stored response could satisfy the request.
	FwdReasonMiss FwdReason = "miss"
	// FwdReasonUriMiss means no stored response matched the request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"
	// FwdReasonOffline means network and cache both failed and a
	// fallback response was produced.
	FwdReasonOffline FwdReason = "offline"
)

// CacheStatus is the value of the Cache-Status response header.
type CacheStatus struct {
	FwdReason FwdReason
	Stored    bool
	hit       bool
}

func (cs *CacheStatus) Hit() {
	cs.hit = true
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.hit = false
	cs.FwdReason = reason
}

// IsHit reports whether the response was served from the cache.
func (cs *CacheStatus) IsHit() bool {
	return cs.hit
}

func (cs *CacheStatus) String() string {
	if cs.hit {
		return "Offline-Cache; hit"
	}
	status := fmt.Sprintf("Offline-Cache; fwd=%s", cs.FwdReason)
	if cs.Stored {
		status += "; stored"
	}
	return status
}
