package prober

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Classification notes written to the full log.
const (
	NoteRedirectToProfiles = "redirect_to_profiles"
	NoteNotFoundStatus     = "not_found_status"
	NoteNotFoundText       = "not_found_text"
	NoteProfileMarkers     = "profile_markers"
	NoteFallbackTaken      = "fallback_taken"
	NoteUnexpectedStatus   = "unexpected_status"
	NoteRetriesExhausted   = "retries_exhausted"
)

const notFoundPhrase = "the specified profile could not be found"

var (
	profileSelectors = ".profile_header, .profile_header_bg, .playerAvatar, .profile_page"
	rawMarkers       = []string{"g_rgprofiledata", `"steamid"`}
)

// Classifier inspects a successful profile page.
type Classifier struct{}

// Classify decides availability from an HTML body. Pages that are neither
// a not-found error nor a recognizable profile count as taken.
func (Classifier) Classify(body []byte) (vanity.Status, string) {
	lower := strings.ToLower(string(body))
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		errText := strings.ToLower(doc.Find(".error_ctn, #message, h3").Text())
		if strings.Contains(errText, notFoundPhrase) {
			return vanity.StatusAvailable, NoteNotFoundText
		}
		if doc.Find(profileSelectors).Length() > 0 {
			return vanity.StatusTaken, NoteProfileMarkers
		}
	}
	if strings.Contains(lower, notFoundPhrase) {
		return vanity.StatusAvailable, NoteNotFoundText
	}
	for _, m := range rawMarkers {
		if strings.Contains(lower, m) {
			return vanity.StatusTaken, NoteProfileMarkers
		}
	}
	return vanity.StatusTaken, NoteFallbackTaken
}
