// ABOUTME: Hashtag subscriptions: listing approved hashtags and recording visitor suggestions as votes.
// ABOUTME: Normalizes suggestions (trim, strip '#') and rejects names Mastodon would not accept as tags.
package timeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/2389-research/tagfeed/logging"
	"github.com/2389-research/tagfeed/store"
)

// ErrInvalidHashtag is returned for suggestions that are not valid tag names.
var ErrInvalidHashtag = errors.New("invalid hashtag")

// HashtagIndex is the subset of the index used for subscriptions.
type HashtagIndex interface {
	IncrementVote(name string) (store.Hashtag, error)
	SetApproved(name string, approved bool) error
	ListHashtags() ([]string, error)
	ListSuggestions() ([]store.Hashtag, error)
}

// Hashtags manages subscribed hashtags.
type Hashtags struct {
	index HashtagIndex
}

// NewHashtags returns a Hashtags backed by index.
func NewHashtags(index HashtagIndex) *Hashtags {
	return &Hashtags{index: index}
}

// List returns the approved hashtags sorted by name.
func (h *Hashtags) List() ([]string, error) {
	return h.index.ListHashtags()
}

// Suggestions returns every suggested hashtag, most voted first.
func (h *Hashtags) Suggestions() ([]store.Hashtag, error) {
	return h.index.ListSuggestions()
}

// Suggest records a vote for name. An empty suggestion is ignored.
func (h *Hashtags) Suggest(name string) error {
	name = NormalizeHashtag(name)
	if name == "" {
		return nil
	}
	if !ValidHashtag(name) {
		return fmt.Errorf("%w: %q", ErrInvalidHashtag, name)
	}

	row, err := h.index.IncrementVote(name)
	if err != nil {
		return err
	}
	logging.Debugf("hashtags: suggested name=%s votes=%d approved=%t", row.Name, row.Votes, row.Approved)
	return nil
}

// Approve subscribes to a suggested hashtag.
func (h *Hashtags) Approve(name string) error {
	return h.index.SetApproved(NormalizeHashtag(name), true)
}

// NormalizeHashtag trims whitespace and a leading '#'.
func NormalizeHashtag(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "#")
}

// ValidHashtag reports whether name contains only letters, digits, marks,
// and underscores, and at least one non-digit.
func ValidHashtag(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}
	hasNonDigit := false
	for _, r := range name {
		switch {
		case unicode.IsDigit(r):
		case unicode.IsLetter(r), unicode.IsMark(r), r == '_':
			hasNonDigit = true
		default:
			return false
		}
	}
	return hasNonDigit
}
