package cache

import "net/http"

// Revalidate adds If-None-Match to req when the lookup returned a stale
// entry, and reports whether it did.
func Revalidate(req *http.Request, l Lookup) bool {
	if req == nil || l.State != Stale {
		return false
	}
	req.Header.Set("If-None-Match", l.Entry.ETag)
	conditionalRequests.Inc()
	return true
}

// Header rebuilds the response headers callers read from a stored entry.
func (e *Entry) Header() http.Header {
	h := http.Header{}
	if e.ETag != "" {
		h.Set("ETag", e.ETag)
	}
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	return h
}
