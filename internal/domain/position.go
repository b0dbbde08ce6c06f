package domain

import "github.com/shopspring/decimal"

type Slot string

const (
	SlotPrimary Slot = "primary"
	SlotGold    Slot = "gold"
	SlotNQ      Slot = "nq"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Opposite returns the closing action for an open position.
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// Source identifies which channel or endpoint opened a position. Close
// events only act on positions opened by the same source.
type Source string

const (
	SourceSecondChannel  Source = "second_channel"
	SourceFBDEndpoint    Source = "fbd_endpoint"
	SourceDiscordMessage Source = "discord_message"
	SourceGoldWebhook    Source = "gold_webhook"
	SourceNQWebhook      Source = "nq_webhook"
)

// Quantities tracks contracts of an open position. Webhook is the
// quantity routed downstream; Personal applies only to the primary slot
// and is informational.
type Quantities struct {
	Personal int `json:"personal,omitempty"`
	Webhook  int `json:"webhook"`
}

// PositionRecord is the single open-position record held per slot.
// A slot is either empty or holds exactly one record.
type PositionRecord struct {
	Action     Action           `json:"action"`
	Direction  string           `json:"direction,omitempty"`
	Ticker     string           `json:"ticker"`
	Interval   int              `json:"interval,omitempty"`
	Level      decimal.Decimal  `json:"level"`
	Score      string           `json:"score,omitempty"`
	Price      decimal.Decimal  `json:"price"`
	Time       string           `json:"time,omitempty"`
	Source     Source           `json:"source,omitempty"`
	Quantities Quantities       `json:"quantities"`
	Target50   string           `json:"target_50,omitempty"`
	Stop       *decimal.Decimal `json:"stop,omitempty"`
}
