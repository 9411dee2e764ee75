// ABOUTME: Mastodon API entities used by tagfeed (statuses, accounts, tags, media) and ID ordering.
// ABOUTME: Field names follow the public REST API JSON; fields tagfeed does not render are not kept on disk.
package mastodon

import (
	"cmp"
	"slices"
	"time"
)

// Account is the author of a status.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	Avatar      string `json:"avatar"`
}

// Tag is a hashtag attached to a status.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// MediaAttachment is an image or video attached to a status.
type MediaAttachment struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	PreviewURL  string  `json:"preview_url"`
	Description *string `json:"description"`
	Blurhash    *string `json:"blurhash"`
}

// Status is a post.
type Status struct {
	ID               string            `json:"id"`
	URI              string            `json:"uri"`
	URL              *string           `json:"url"`
	CreatedAt        time.Time         `json:"created_at"`
	Account          Account           `json:"account"`
	Content          string            `json:"content"`
	Sensitive        bool              `json:"sensitive"`
	SpoilerText      string            `json:"spoiler_text"`
	Language         *string           `json:"language"`
	RepliesCount     int64             `json:"replies_count"`
	ReblogsCount     int64             `json:"reblogs_count"`
	FavouritesCount  int64             `json:"favourites_count"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	Tags             []Tag             `json:"tags"`
}

// Engagements is the sum of replies, reblogs, and favourites.
func (s *Status) Engagements() int64 {
	return s.RepliesCount + s.ReblogsCount + s.FavouritesCount
}

// CompareIDs orders Mastodon IDs. IDs are decimal strings of growing length,
// so a longer ID is always newer and equal lengths compare lexically.
// See https://docs.joinmastodon.org/api/guidelines/#id
func CompareIDs(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// MaxID returns the highest ID among statuses, or "" if there are none.
func MaxID(statuses []Status) string {
	var best string
	for i := range statuses {
		if best == "" || CompareIDs(statuses[i].ID, best) > 0 {
			best = statuses[i].ID
		}
	}
	return best
}

// SortNewestFirst sorts statuses by ID descending.
func SortNewestFirst(statuses []Status) {
	slices.SortStableFunc(statuses, func(a, b Status) int {
		return CompareIDs(b.ID, a.ID)
	})
}

// Dedupe sorts statuses newest first and drops repeated IDs.
func Dedupe(statuses []Status) []Status {
	SortNewestFirst(statuses)
	return slices.CompactFunc(statuses, func(a, b Status) bool { return a.ID == b.ID })
}
