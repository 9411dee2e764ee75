// ABOUTME: htmx request detection and response trigger helpers.
// ABOUTME: Fragment handlers use these to tell htmx requests from direct browser visits.
package web

import (
	"net/http"
	"strings"
)

const (
	// HeaderRequest is sent by htmx on every request it issues.
	HeaderRequest = "HX-Request"
	// HeaderTrigger makes htmx dispatch the named events on the client.
	HeaderTrigger = "HX-Trigger"

	// EventTagsUpdated reloads the hashtag list after a suggestion.
	EventTagsUpdated = "tags-updated"
)

// IsHTMXRequest reports whether the request was initiated by htmx.
func IsHTMXRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.EqualFold(r.Header.Get(HeaderRequest), "true")
}

// Trigger adds event to the HX-Trigger response header. Call before the
// header is written.
func Trigger(w http.ResponseWriter, event string) {
	if existing := w.Header().Get(HeaderTrigger); existing != "" {
		event = existing + ", " + event
	}
	w.Header().Set(HeaderTrigger, event)
}
