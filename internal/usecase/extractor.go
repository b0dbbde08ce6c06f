package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/trade_alert_relay/internal/domain"
)

// Alert message shapes. Labels are wrapped in double asterisks by the
// upstream bot; matching is case-insensitive and values are validated
// after capture (a field that fails to parse voids the whole shape).
var (
	entryPattern = regexp.MustCompile(
		`(?i)Ticker: \*\*([^*]+)\*\*\s*\nInterval: \*\*(\d+)\*\*\s*\nLevel: \*\*([\d.]+)\*\*\s*\nScore: \*\*(\d+/\d+)\*\*\s*\nPrice: \*\*([\d.]+)\*\*\s*\nTime: \*\*([\d\s:-]+)\*\*`)

	targetHitPattern = regexp.MustCompile(
		`(?i)Ticker: \*\*([^*]+)\*\*\s*\nInterval: \*\*(\d+)\*\*\s*\nLevel: \*\*([\d.]+)\*\*\s*\nTarget 1: \*\*([\d.]+)\*\*\s*\nEntry: \*\*([\d.]+)\*\*\s*\nProfit: \*\*([+-]?[\d.]+) pts\*\*\s*\nTime: \*\*([\d\s:-]+)\*\*`)

	target2HitPattern = regexp.MustCompile(
		`(?i)Ticker: \*\*([^*]+)\*\*\s*\nInterval: \*\*(\d+)\*\*\s*\nLevel: \*\*([\d.]+)\*\*\s*\nTarget 2: \*\*([\d.]+)\*\*\s*\nEntry: \*\*([\d.]+)\*\*\s*\nProfit: \*\*([+-]?[\d.]+) pts\*\*\s*\nTime: \*\*([\d\s:-]+)\*\*`)

	stopLossPattern = regexp.MustCompile(
		`(?i)Stop Loss Hit\s*\nTicker: \*\*([^*]+)\*\*\s*\nInterval: \*\*(\d+)\*\*\s*\nLevel: \*\*([\d.]+)\*\*\s*\nEntry: \*\*([\d.]+)\*\*\s*\nExit: \*\*([\d.]+)\*\*\s*\nLoss: \*\*([+-]?[\d.]+) pts\*\*\s*\nTime: \*\*([\d\s:-]+)\*\*`)

	stopLossSimplePattern = regexp.MustCompile(
		`(?i)Ticker: \*\*([^*]+)\*\*\s*\nInterval: \*\*(\d+)\*\*\s*\nLevel: \*\*([\d.]+)\*\*\s*\nEntry: \*\*([\d.]+)\*\*\s*\nExit: \*\*([\d.]+)\*\*\s*\nLoss: \*\*([+-]?[\d.]+) pts\*\*`)

	trimPattern = regexp.MustCompile(`(?i)#alert trim (\d+)/(\d+)`)

	stoppedPattern = regexp.MustCompile(`(?i)#alert stopped`)

	esOrderPattern = regexp.MustCompile(
		`(?is)ES (long|short) (\d+): ([A-Z])(?:\s+\w+)?\s*.*Stop: (\d+)`)
)

// Extractor turns raw alert text into typed signals. Shapes are tried
// in a fixed order and the first structural match wins.
type Extractor struct {
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract runs every text of the message (content, then embed
// descriptions) through the shape list. The stopped and ES-order
// markers are only honoured when the message is a broadcast.
func (e *Extractor) Extract(msg domain.Message) (domain.Signal, bool) {
	for _, text := range msg.Texts() {
		if sig, ok := e.extract(text, msg.MentionEveryone); ok {
			return sig, true
		}
	}
	return nil, false
}

// ExtractText matches plain alert text with no carrying message, so the
// broadcast-gated shapes never apply.
func (e *Extractor) ExtractText(text string) (domain.Signal, bool) {
	return e.extract(text, false)
}

func (e *Extractor) extract(text string, broadcast bool) (domain.Signal, bool) {
	if m := targetHitPattern.FindStringSubmatch(text); m != nil {
		if sig, ok := buildTargetHit(m, 1); ok {
			return sig, true
		}
	}
	if m := target2HitPattern.FindStringSubmatch(text); m != nil {
		if sig, ok := buildTargetHit(m, 2); ok {
			return sig, true
		}
	}
	if m := stopLossPattern.FindStringSubmatch(text); m != nil {
		if sig, ok := e.buildStopLoss(m, true); ok {
			return sig, true
		}
	}
	if m := stopLossSimplePattern.FindStringSubmatch(text); m != nil {
		if sig, ok := e.buildStopLoss(m, false); ok {
			return sig, true
		}
	}
	if m := entryPattern.FindStringSubmatch(text); m != nil {
		if sig, ok := buildEntry(m); ok {
			return sig, true
		}
	}
	if m := trimPattern.FindStringSubmatch(text); m != nil {
		num, err1 := strconv.Atoi(m[1])
		den, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil && den > 0 {
			return domain.TrimSignal{Numerator: num, Denominator: den}, true
		}
	}
	if broadcast {
		if stoppedPattern.MatchString(text) {
			return domain.StoppedSignal{}, true
		}
		if m := esOrderPattern.FindStringSubmatch(text); m != nil {
			level, err1 := strconv.Atoi(m[2])
			stop, err2 := strconv.Atoi(m[4])
			if err1 == nil && err2 == nil {
				return domain.ESOrderSignal{
					Direction: strings.ToLower(m[1]),
					Level:     level,
					Category:  strings.ToUpper(m[3]),
					Stop:      stop,
				}, true
			}
		}
	}
	return nil, false
}

func buildEntry(m []string) (domain.Signal, bool) {
	interval, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	level, err := decimal.NewFromString(m[3])
	if err != nil {
		return nil, false
	}
	price, err := decimal.NewFromString(m[5])
	if err != nil {
		return nil, false
	}
	return domain.EntrySignal{
		Ticker:   strings.TrimSpace(m[1]),
		Interval: interval,
		Level:    level,
		Score:    m[4],
		Price:    price,
		Time:     strings.TrimSpace(m[6]),
	}, true
}

func buildTargetHit(m []string, sequence int) (domain.Signal, bool) {
	interval, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	level, err := decimal.NewFromString(m[3])
	if err != nil {
		return nil, false
	}
	target, err := decimal.NewFromString(m[4])
	if err != nil {
		return nil, false
	}
	entry, err := decimal.NewFromString(m[5])
	if err != nil {
		return nil, false
	}
	profit, err := decimal.NewFromString(m[6])
	if err != nil {
		return nil, false
	}
	return domain.TargetHitSignal{
		Sequence: sequence,
		Ticker:   strings.TrimSpace(m[1]),
		Interval: interval,
		Level:    level,
		Target:   target,
		Entry:    entry,
		Profit:   profit,
		Time:     strings.TrimSpace(m[7]),
	}, true
}

func (e *Extractor) buildStopLoss(m []string, detailed bool) (domain.Signal, bool) {
	interval, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	level, err := decimal.NewFromString(m[3])
	if err != nil {
		return nil, false
	}
	entry, err := decimal.NewFromString(m[4])
	if err != nil {
		return nil, false
	}
	exit, err := decimal.NewFromString(m[5])
	if err != nil {
		return nil, false
	}
	loss, err := decimal.NewFromString(m[6])
	if err != nil {
		return nil, false
	}
	sig := domain.StopLossSignal{
		Ticker:   strings.TrimSpace(m[1]),
		Interval: interval,
		Level:    level,
		Entry:    entry,
		Exit:     exit,
		Loss:     loss,
		Detailed: detailed,
	}
	if detailed {
		sig.Time = strings.TrimSpace(m[7])
	} else {
		// The simple shape carries no time text; stamp the processing
		// instant. Dedup strength is weaker here on purpose.
		sig.Time = e.now().Format("2006-01-02T15:04:05.000000")
	}
	return sig, true
}
