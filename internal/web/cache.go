package web

// cache.go derives the content fingerprint every read response carries.
// The ETag hashes the query shape plus result size, so a cached response
// revalidates cheaply after a refresh changes the data underneath.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

const (
	cachePublicSeconds = 300
	cacheSharedSeconds = 600
)

// setCacheHeaders writes the ETag and Cache-Control headers for a read
// response and reports whether the client's If-None-Match already has it,
// in which case the caller should reply 304 with no body.
func setCacheHeaders(w http.ResponseWriter, r *http.Request, etagSource string) bool {
	sum := sha256.Sum256([]byte(etagSource))
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, s-maxage=%d", cachePublicSeconds, cacheSharedSeconds))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
