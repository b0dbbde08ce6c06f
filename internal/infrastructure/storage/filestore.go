package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

// slot file names kept from the original deployment so state survives
// an upgrade in place.
var slotFiles = map[domain.Slot]string{
	domain.SlotPrimary: "open_order.json",
	domain.SlotGold:    "open_gold_order.json",
	domain.SlotNQ:      "open_nq_order.json",
}

type slotEnvelope struct {
	Timestamp time.Time              `json:"timestamp"`
	OrderInfo *domain.PositionRecord `json:"order_info"`
}

// FileStore keeps one small JSON document per slot. A missing file
// means the slot is empty; an unreadable one is treated the same way.
// Records older than the expiry are lazily reaped on access.
type FileStore struct {
	dir    string
	expiry time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewFileStore(dir string, expiry time.Duration, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		expiry: expiry,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *FileStore) path(slot domain.Slot) string {
	name, ok := slotFiles[slot]
	if !ok {
		name = fmt.Sprintf("open_%s_order.json", slot)
	}
	return filepath.Join(s.dir, name)
}

func (s *FileStore) read(slot domain.Slot) (*slotEnvelope, bool) {
	data, err := os.ReadFile(s.path(slot))
	if err != nil {
		return nil, false
	}
	var env slotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("Unreadable slot file, treating as empty",
			zap.String("slot", string(slot)), zap.Error(err))
		return nil, false
	}
	if env.OrderInfo == nil {
		return nil, false
	}
	return &env, true
}

func (s *FileStore) HasOpen(ctx context.Context, slot domain.Slot) bool {
	env, ok := s.read(slot)
	if !ok {
		return false
	}
	if s.now().Sub(env.Timestamp) > s.expiry {
		s.logger.Info("Position expired, clearing slot",
			zap.String("slot", string(slot)),
			zap.Time("opened_at", env.Timestamp))
		if err := s.Clear(ctx, slot); err != nil {
			s.logger.Error("Failed to clear expired slot",
				zap.String("slot", string(slot)), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *FileStore) Get(ctx context.Context, slot domain.Slot) (*domain.PositionRecord, error) {
	if !s.HasOpen(ctx, slot) {
		return nil, nil
	}
	env, ok := s.read(slot)
	if !ok {
		return nil, nil
	}
	return env.OrderInfo, nil
}

func (s *FileStore) Save(ctx context.Context, slot domain.Slot, rec *domain.PositionRecord) error {
	env := slotEnvelope{
		Timestamp: s.now(),
		OrderInfo: rec,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal slot %s: %w", slot, err)
	}
	if err := os.WriteFile(s.path(slot), data, 0o644); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", slot, err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context, slot domain.Slot) error {
	err := os.Remove(s.path(slot))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear slot %s: %w", slot, err)
	}
	return nil
}
