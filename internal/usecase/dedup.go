package usecase

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-process idempotency registry with a FIFO cap so
// memory stays bounded over long uptimes. Two independent instances are
// used: one for upstream message ids, one for content fingerprints.
type MemoryLedger struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

func NewMemoryLedger(capacity int) *MemoryLedger {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryLedger{
		seen:     make(map[string]struct{}),
		capacity: capacity,
	}
}

func (l *MemoryLedger) Seen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

func (l *MemoryLedger) Mark(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[id]; ok {
		return
	}
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)
	for len(l.order) > l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, oldest)
	}
}

// Fingerprint derives the content identity of a close-type event. The
// same recipe is applied to target-hit, target-2-hit and stop-loss
// events so the same logical event arriving through different channels
// collapses to one id. All five components must match exactly,
// including the time text.
func Fingerprint(ticker string, a, b, c decimal.Decimal, timeText string) string {
	content := fmt.Sprintf("%s_%s_%s_%s_%s", ticker, a.String(), b.String(), c.String(), timeText)
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
