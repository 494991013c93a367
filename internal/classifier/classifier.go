package classifier

import (
	"regexp"
	"strings"
)

// Reasons reported alongside a verdict
const (
	ReasonEmpty      = "empty"
	ReasonSellMarker = "sell_marker"
	ReasonBuyToken   = "buy_token"
	ReasonNoToken    = "no_token"
)

var (
	// buy tokens, whole word or hashtag; "lookingfor" is accepted too
	buyPattern = regexp.MustCompile(`(?i)\bwtb\b|#wtb\b|\bbuy(ing)?\b|\bneed(s|ed)?\b|\blooking\s*for\b`)
	// sell markers override any buy token in the same text
	sellPattern = regexp.MustCompile(`(?i)\bwts\b|#wts\b|\bsell(ing)?\b`)
)

// Result is the classifier verdict for one message
type Result struct {
	BuyIntent bool   `json:"buy_intent"`
	Reason    string `json:"reason"`
}

// Classify decides whether text expresses an intent to buy
func Classify(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Reason: ReasonEmpty}
	}
	if sellPattern.MatchString(text) {
		return Result{Reason: ReasonSellMarker}
	}
	if buyPattern.MatchString(text) {
		return Result{BuyIntent: true, Reason: ReasonBuyToken}
	}
	return Result{Reason: ReasonNoToken}
}

// IsBuyIntent is shorthand for Classify(text).BuyIntent
func IsBuyIntent(text string) bool {
	return Classify(text).BuyIntent
}
