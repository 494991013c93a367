package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Button is a URL button under a contact card
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Card is the private reply explaining how to reach a buyer
type Card struct {
	ListingID uint64   `json:"listing_id"`
	Text      string   `json:"text"`
	Buttons   []Button `json:"buttons"`
}

// ContactCard builds the contact card for a deep-link start payload.
// Unknown listings return repository.ErrListingNotFound; malformed payloads
// return ErrInvalidPayload.
func (r *Relay) ContactCard(ctx context.Context, payload string) (*Card, error) {
	listingID, postMsgID, err := ParseStartPayload(payload)
	if err != nil {
		return nil, err
	}

	listing, err := r.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	var username string
	if listing.SenderName != nil {
		username = strings.TrimPrefix(*listing.SenderName, "@")
	}

	var groupUsername, groupTitle string
	chat, err := r.store.GetSourceChat(ctx, listing.SourceChatID)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", listing.SourceChatID).Warn("Failed to load chat metadata")
	}
	if chat != nil {
		groupTitle = chat.Title
		if chat.Username != nil {
			groupUsername = strings.TrimPrefix(*chat.Username, "@")
		}
	}

	origURL := MessageLink(groupUsername, listing.SourceChatID, listing.SourceMsgID)

	lines := []string{"📬 <b>How to contact the buyer:</b>"}
	if username != "" {
		u := html.EscapeString(username)
		lines = append(lines, fmt.Sprintf(`1) Username: <a href="https://t.me/%s">@%s</a>  <i>(recommended)</i>`, u, u))
	} else {
		lines = append(lines, "1) Username: <i>not available</i>")
	}

	profile := ProfileLink(listing.SenderID, username)
	lines = append(lines, fmt.Sprintf(`2) Profile link: <a href="%s">%s</a>`, html.EscapeString(profile), html.EscapeString(profile)))

	if origURL != "" {
		if groupUsername != "" {
			lines = append(lines,
				fmt.Sprintf(`3) Original message: <a href="%s">view</a> (in <a href="https://t.me/%s">@%s</a>)`,
					origURL, html.EscapeString(groupUsername), html.EscapeString(groupUsername)),
				"<i>If it doesn’t open, join the group first.</i>")
		} else {
			lines = append(lines, fmt.Sprintf(`3) Original message: <a href="%s">%s</a>`, origURL, origURL))
		}
	}

	if groupUsername != "" {
		lines = append(lines, fmt.Sprintf("\n👥 Group: <a href=\"https://t.me/%s\">@%s</a>",
			html.EscapeString(groupUsername), html.EscapeString(groupUsername)))
	} else if groupTitle != "" {
		lines = append(lines, "\n👥 Group: "+html.EscapeString(groupTitle))
	}

	if admin := strings.TrimPrefix(r.opts.AdminContact, "@"); admin != "" {
		a := html.EscapeString(admin)
		lines = append(lines, "", fmt.Sprintf(`If none of the above works, please contact admin: <a href="https://t.me/%s">@%s</a>`, a, a))
	}
	lines = append(lines, "", "✅ Good luck with the deal!")

	card := &Card{ListingID: listingID, Text: strings.Join(lines, "\n")}

	if username != "" {
		card.Buttons = append(card.Buttons, Button{Text: "💬 Message buyer", URL: "https://t.me/" + username})
	}
	if postMsgID == 0 {
		postMsgID = r.firstPostMessage(ctx, listingID)
	}
	if back := MessageLink(strings.TrimPrefix(r.opts.TargetUsername, "@"), r.opts.TargetChatID, postMsgID); back != "" {
		card.Buttons = append(card.Buttons, Button{Text: "🔙 Back to group post", URL: back})
	}
	if origURL != "" {
		card.Buttons = append(card.Buttons, Button{Text: "📩 View original post", URL: origURL})
	}
	if groupUsername != "" {
		card.Buttons = append(card.Buttons, Button{Text: "🔗 Open group", URL: "https://t.me/" + groupUsername})
	}

	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"sender_id":  listing.SenderID,
	}).Info("Contact card requested")
	return card, nil
}

func (r *Relay) firstPostMessage(ctx context.Context, listingID uint64) int64 {
	posts, err := r.store.PublishedPostsForListing(ctx, listingID)
	if err != nil || len(posts) == 0 {
		return 0
	}
	return posts[0].MessageID
}

// ProfileLink links to a user by username when known, else by numeric id
func ProfileLink(userID int64, username string) string {
	if u := strings.TrimPrefix(username, "@"); u != "" {
		return "https://t.me/" + u
	}
	return fmt.Sprintf("tg://user?id=%d", userID)
}

// MessageLink links to a message in a chat. Public chats use their
// username; private supergroups use the c/ form, which only members can
// open. Returns "" when nothing can be linked.
func MessageLink(chatUsername string, chatID, msgID int64) string {
	if msgID <= 0 {
		return ""
	}
	if u := strings.TrimPrefix(chatUsername, "@"); u != "" {
		return fmt.Sprintf("https://t.me/%s/%d", u, msgID)
	}
	if chatID == 0 {
		return ""
	}
	s := strconv.FormatInt(chatID, 10)
	internal := strings.TrimPrefix(s, "-100")
	if internal == s {
		internal = strings.TrimPrefix(s, "-")
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", internal, msgID)
}
