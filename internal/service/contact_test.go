package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtb-relay-go/internal/repository"
)

func TestMessageLink(t *testing.T) {
	assert.Equal(t, "https://t.me/otc_market/55", MessageLink("@otc_market", -1001234567890, 55))
	assert.Equal(t, "https://t.me/c/1234567890/55", MessageLink("", -1001234567890, 55))
	assert.Equal(t, "https://t.me/c/4242/7", MessageLink("", -4242, 7))
	assert.Equal(t, "", MessageLink("otc_market", -100123, 0))
	assert.Equal(t, "", MessageLink("", 0, 5))
}

func TestProfileLink(t *testing.T) {
	assert.Equal(t, "https://t.me/buyer", ProfileLink(5, "@buyer"))
	assert.Equal(t, "tg://user?id=5", ProfileLink(5, ""))
}

func buttonURLs(c *Card) map[string]string {
	out := map[string]string{}
	for _, b := range c.Buttons {
		out[b.Text] = b.URL
	}
	return out
}

func TestContactCardPublicChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ev := msg(-100777, 31, 5, "wtb wise")
	ev.SenderName = "buyer_five"
	ev.ChatUsername = "@usdt_chat"
	ev.ChatTitle = "USDT chat"
	out, err := f.relay.OnNewMessage(ctx, ev)
	require.NoError(t, err)

	card, err := f.relay.ContactCard(ctx, uintStr(out.ListingID)+"_513")
	require.NoError(t, err)

	assert.Equal(t, out.ListingID, card.ListingID)
	assert.Contains(t, card.Text, `1) Username: <a href="https://t.me/buyer_five">@buyer_five</a>`)
	assert.Contains(t, card.Text, `2) Profile link: <a href="https://t.me/buyer_five">`)
	assert.Contains(t, card.Text, `3) Original message: <a href="https://t.me/usdt_chat/31">view</a>`)
	assert.Contains(t, card.Text, "👥 Group: <a href=\"https://t.me/usdt_chat\">@usdt_chat</a>")
	assert.Contains(t, card.Text, "@relay_admin")
	assert.Contains(t, card.Text, "Good luck with the deal!")

	urls := buttonURLs(card)
	assert.Equal(t, "https://t.me/buyer_five", urls["💬 Message buyer"])
	assert.Equal(t, "https://t.me/otc_market/513", urls["🔙 Back to group post"])
	assert.Equal(t, "https://t.me/usdt_chat/31", urls["📩 View original post"])
	assert.Equal(t, "https://t.me/usdt_chat", urls["🔗 Open group"])
}

func TestContactCardAnonymousPrivateChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.relay.OnNewMessage(ctx, msg(-1009876, 8, 6, "need revolut"))
	require.NoError(t, err)

	// no message id in the payload: falls back to the first published post
	card, err := f.relay.ContactCard(ctx, uintStr(out.ListingID))
	require.NoError(t, err)

	assert.Contains(t, card.Text, "1) Username: <i>not available</i>")
	assert.Contains(t, card.Text, "tg://user?id=6")
	assert.Contains(t, card.Text, "https://t.me/c/9876/8")
	assert.NotContains(t, card.Text, "👥 Group")

	urls := buttonURLs(card)
	assert.NotContains(t, urls, "💬 Message buyer")
	assert.NotContains(t, urls, "🔗 Open group")
	assert.Contains(t, []string{"https://t.me/otc_market/501", "https://t.me/otc_market/512"}, urls["🔙 Back to group post"])
}

func TestContactCardErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.relay.ContactCard(ctx, "abc")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = f.relay.ContactCard(ctx, "404")
	assert.ErrorIs(t, err, repository.ErrListingNotFound)
}
