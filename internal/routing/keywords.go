package routing

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Category is a named group of tag phrases
type Category struct {
	Name    string   `mapstructure:"name" json:"name"`
	Phrases []string `mapstructure:"phrases" json:"phrases"`
}

// Topic maps a title phrase to a forum topic in the sink chat
type Topic struct {
	Title   string `mapstructure:"title" json:"title"`
	TopicID int64  `mapstructure:"topic_id" json:"topic_id"`
}

// Keywords is the dictionary used for tagging and routing. Order matters:
// topics are matched in the order given.
type Keywords struct {
	Categories []Category `json:"categories"`
	Topics     []Topic    `json:"topics"`
}

// LoadKeywords reads categories and topics from YAML or JSON files.
// An empty categories path selects the built-in categories; an empty
// topics path means only the general topic is ever routed to.
func LoadKeywords(categoriesPath, topicsPath string) (*Keywords, error) {
	kw := &Keywords{}

	if categoriesPath == "" {
		kw.Categories = DefaultCategories()
	} else {
		v := viper.New()
		v.SetConfigFile(categoriesPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading categories file: %w", err)
		}
		if err := v.UnmarshalKey("categories", &kw.Categories); err != nil {
			return nil, fmt.Errorf("error unmarshaling categories: %w", err)
		}
	}

	if topicsPath != "" {
		v := viper.New()
		v.SetConfigFile(topicsPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading topics file: %w", err)
		}
		if err := v.UnmarshalKey("topics", &kw.Topics); err != nil {
			return nil, fmt.Errorf("error unmarshaling topics: %w", err)
		}
	}

	kw.normalize()
	if err := kw.Validate(); err != nil {
		return nil, err
	}
	return kw, nil
}

// normalize lowercases phrases and titles and trims whitespace
func (k *Keywords) normalize() {
	for i := range k.Categories {
		phrases := k.Categories[i].Phrases[:0]
		for _, p := range k.Categories[i].Phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				phrases = append(phrases, p)
			}
		}
		k.Categories[i].Phrases = phrases
	}
	for i := range k.Topics {
		k.Topics[i].Title = strings.ToLower(strings.TrimSpace(k.Topics[i].Title))
	}
}

// Validate checks that every topic has a title and a positive id
func (k *Keywords) Validate() error {
	for _, t := range k.Topics {
		if t.Title == "" {
			return fmt.Errorf("topic %d has an empty title", t.TopicID)
		}
		if t.TopicID <= 0 {
			return fmt.Errorf("topic %q has invalid id %d", t.Title, t.TopicID)
		}
	}
	return nil
}

// DefaultCategories returns the built-in tag dictionary
func DefaultCategories() []Category {
	return []Category{
		{Name: "exchanges", Phrases: []string{
			"binance", "bybit", "okx", "huobi", "htx",
			"gate io", "bitget", "mexc", "kucoin", "bingx",
			"coinlist", "paxful", "cryptocom", "crypto com",
			"bc game", "bcgame", "fragment", "weex", "arkham",
		}},
		{Name: "payments_banks", Phrases: []string{
			"bunq", "n26", "monzo", "santander", "bbva",
			"ing", "finom", "vivid", "chase", "c24",
			"trade republic", "billions", "bank of america",
			"revolut", "revolut business", "revolut personal",
			"wise", "wise business", "wise personal",
			"paysera", "icard", "zen", "zen business",
			"airwallex", "mercury", "bitsa", "wirex",
			"genome", "sumup", "persona", "trustee", "trustee plus",
			"stripe", "stripe business", "paypal", "paypal business",
			"cashapp", "alipay", "nexo", "ozon", "twitter",
		}},
		{Name: "kyc_verification", Phrases: []string{
			"kyc", "kyc service", "kyc accepted",
			"blockpass", "persona", "sumsub", "onfido",
			"holonym", "buildpad", "buidlpad", "solayer",
			"kaito", "arkham", "legion", "civic",
			"sandbox", "echo",
		}},
		{Name: "marketplaces_services", Phrases: []string{
			"fragment", "tiktok", "temu", "ozon", "airbnb",
			"telegram", "twitter", "whatsapp", "esim",
			"game", "bc game", "bcgame", "bet365",
		}},
		{Name: "crypto_wallets", Phrases: []string{
			"metamask", "trustwallet", "phantom", "coinbase wallet",
			"ledger", "trezor", "tronlink",
		}},
		{Name: "countries", Phrases: []string{
			"usa", "indonesia", "spain", "egypt", "philippines",
			"uganda", "georgia", "america", "germany", "armenia",
			"africa", "russia", "costa rica", "italy", "zambia",
			"vietnam", "rwanda", "angola", "uruguay", "paraguay",
			"argentina", "bolivia", "peru", "brazil", "chile",
			"colombia", "el salvador", "mexico",
		}},
		{Name: "misc", Phrases: []string{
			"iban", "llc", "emulator", "passport",
			"vcc", "accs", "accounts", "ready account",
			"ready acc", "old account", "merchant", "premium",
			"crypto", "wallet", "stake", "escrow", "reviews",
			"selfie", "verification",
		}},
	}
}
