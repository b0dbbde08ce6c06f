package domain

import "github.com/shopspring/decimal"

// OrderInstruction is the JSON body posted to downstream execution
// webhooks. Empty fields are omitted from the wire format.
type OrderInstruction struct {
	Ticker       string `json:"ticker"`
	Action       Action `json:"action"`
	Price        string `json:"price,omitempty"`
	OrderType    string `json:"orderType,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	StopPrice    string `json:"stopPrice,omitempty"`
	QuantityType string `json:"quantityType,omitempty"`
	Time         string `json:"time,omitempty"`
	Cancel       string `json:"cancel,omitempty"`
}

const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
	OrderTypeStop   = "stop"

	// ActionExit and ActionCancel are instruction-only verbs; positions
	// themselves are always buy or sell.
	ActionExit   Action = "exit"
	ActionCancel Action = "cancel"

	QuantityTypeFixed = "fixed_quantity"
)

// EntryContext carries optional metadata attached to the side-channel
// notification sent on entry trades.
type EntryContext struct {
	Source    Source
	Direction string
	Score     string
	Level     decimal.Decimal
	Interval  int
	Stop      string
}
