package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// GenerateETag returns a strong ETag for rendered content
func GenerateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// ParseIfNoneMatch splits an If-None-Match header into its entity tags
func ParseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var etags []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			etags = append(etags, part)
		}
	}
	return etags
}

// MatchesETag compares etag against the candidates using weak comparison
func MatchesETag(etag string, candidates []string) bool {
	if len(candidates) == 1 && candidates[0] == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, c := range candidates {
		if strings.TrimPrefix(c, "W/") == want {
			return true
		}
	}
	return false
}

// CheckConditionalRequest writes 304 Not Modified and returns true when the
// client already holds the current representation. If-None-Match takes
// precedence over If-Modified-Since.
func CheckConditionalRequest(w http.ResponseWriter, r *http.Request, etag string, lastModified time.Time) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if MatchesETag(etag, ParseIfNoneMatch(inm)) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
		return false
	}

	ims := r.Header.Get("If-Modified-Since")
	if ims == "" || lastModified.IsZero() {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	if !lastModified.Truncate(time.Second).After(since) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

// SetCacheHeaders sets validators and Cache-Control on the response
func SetCacheHeaders(w http.ResponseWriter, etag string, lastModified time.Time, cacheControl string) {
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	if !lastModified.IsZero() {
		w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
}
