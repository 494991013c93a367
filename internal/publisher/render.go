package publisher

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`@\w{3,32}`)
	linkPattern     = regexp.MustCompile(`https?://\S+|t\.me/\S+`)
	phonePattern    = regexp.MustCompile(`\+?\d[\d\-\s()]{7,}`)
)

const hidden = "[hidden]"

// Sanitize masks contact details (usernames, links, phone numbers) so the
// only way to reach the buyer is through the relay.
func Sanitize(text string) string {
	t := usernamePattern.ReplaceAllString(text, hidden)
	t = linkPattern.ReplaceAllString(t, hidden)
	t = phonePattern.ReplaceAllString(t, hidden)
	return strings.TrimSpace(t)
}

// PostView is what a published post shows
type PostView struct {
	CleanText     string
	Rating        int
	StarsText     string
	TotalMessages int64
	Reviews       int64
	Tags          []string
}

// RenderPost builds the HTML body of a published listing. CleanText must
// already be sanitized; it is escaped here.
func RenderPost(v PostView) string {
	parts := []string{
		"<b>💸 New WTB message</b>",
		fmt.Sprintf("\n<b>About user (%s):</b>", v.StarsText),
		"<blockquote>" +
			fmt.Sprintf("~ <i>User rating:</i> %d%%\n", v.Rating) +
			fmt.Sprintf("~ <i>Total messages:</i> %d\n", v.TotalMessages) +
			fmt.Sprintf("~ <i>Number of reviews:</i> %d", v.Reviews) +
			"</blockquote>",
		"<b>Text:</b>",
		"<blockquote>" + html.EscapeString(v.CleanText) + "</blockquote>",
	}

	if len(v.Tags) > 0 {
		tags := make([]string, len(v.Tags))
		for i, t := range v.Tags {
			tags[i] = "<i>#" + html.EscapeString(strings.TrimPrefix(t, "#")) + "</i>"
		}
		parts = append(parts, "\n"+strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n")
}

// StartPayload is the deep-link parameter that opens the contact card.
// messageID is omitted when the sink message is not known yet.
func StartPayload(listingID uint64, messageID int64) string {
	if messageID == 0 {
		return fmt.Sprintf("%d", listingID)
	}
	return fmt.Sprintf("%d_%d", listingID, messageID)
}

// ContactURL is the bot deep link for a start payload
func ContactURL(botUsername, payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), payload)
}
