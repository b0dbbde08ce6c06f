package domain

import "github.com/shopspring/decimal"

type SignalKind string

const (
	KindEntryTriggered SignalKind = "entry_triggered"
	KindTargetHit      SignalKind = "target_hit"
	KindTarget2Hit     SignalKind = "target2_hit"
	KindStopLossHit    SignalKind = "stop_loss_hit"
	KindTrim           SignalKind = "trim"
	KindStopped        SignalKind = "stopped"
	KindESOrder        SignalKind = "es_order"
)

// Signal is one of the typed trading events extracted from alert text.
type Signal interface {
	Kind() SignalKind
}

// EntrySignal is a triggered entry alert.
type EntrySignal struct {
	Ticker   string
	Interval int
	Level    decimal.Decimal
	Score    string
	Price    decimal.Decimal
	Time     string
}

func (EntrySignal) Kind() SignalKind { return KindEntryTriggered }

// TargetHitSignal covers both target 1 and target 2 alerts; the shapes
// are identical apart from the section label.
type TargetHitSignal struct {
	Sequence int // 1 or 2
	Ticker   string
	Interval int
	Level    decimal.Decimal
	Target   decimal.Decimal
	Entry    decimal.Decimal
	Profit   decimal.Decimal
	Time     string
}

func (s TargetHitSignal) Kind() SignalKind {
	if s.Sequence == 2 {
		return KindTarget2Hit
	}
	return KindTargetHit
}

// StopLossSignal is a stop-loss alert. The simple form carries no time
// text; the extractor stamps the processing instant instead.
type StopLossSignal struct {
	Ticker   string
	Interval int
	Level    decimal.Decimal
	Entry    decimal.Decimal
	Exit     decimal.Decimal
	Loss     decimal.Decimal
	Time     string
	Detailed bool
}

func (StopLossSignal) Kind() SignalKind { return KindStopLossHit }

// TrimSignal is a partial close expressed as a fraction of the open
// quantity.
type TrimSignal struct {
	Numerator   int
	Denominator int
}

func (TrimSignal) Kind() SignalKind { return KindTrim }

// StoppedSignal is the bare flatten-everything marker. Only honoured on
// broadcast (mention-everyone) messages.
type StoppedSignal struct{}

func (StoppedSignal) Kind() SignalKind { return KindStopped }

// ESOrderSignal is the manual ES order marker. Only honoured on
// broadcast messages.
type ESOrderSignal struct {
	Direction string // long or short
	Level     int
	Category  string // A, B, C or other single letter
	Stop      int
}

func (ESOrderSignal) Kind() SignalKind { return KindESOrder }
