package inventory

import (
	"log/slog"
	"sync"

	"realm-server/internal/gamedata"

	"github.com/google/uuid"
)

// Service holds the inventories of every session in one zone. Every
// operation on a session without an initialised inventory returns
// ErrNoInventory; that is the normal state of a session that already left.
type Service struct {
	mu          sync.RWMutex
	data        *gamedata.Data
	capacity    int
	rng         Roller
	inventories map[uuid.UUID]*Inventory
	logger      *slog.Logger
}

func NewService(data *gamedata.Data, capacity int, rng Roller) *Service {
	return &Service{
		data:        data,
		capacity:    capacity,
		rng:         rng,
		inventories: make(map[uuid.UUID]*Inventory),
		logger:      slog.With("component", "inventory"),
	}
}

// Init creates the session's inventory, restoring snap when given.
func (s *Service) Init(session uuid.UUID, snap *Snapshot) *Inventory {
	inv := New(s.data, s.capacity)
	if snap != nil {
		inv.Restore(*snap)
	}

	s.mu.Lock()
	s.inventories[session] = inv
	s.mu.Unlock()

	s.logger.Debug("Inventory initialised", "session", session, "restored", snap != nil)
	return inv
}

// Release removes the session's inventory and returns its final snapshot.
func (s *Service) Release(session uuid.UUID) (Snapshot, bool) {
	s.mu.Lock()
	inv, ok := s.inventories[session]
	delete(s.inventories, session)
	s.mu.Unlock()

	if !ok {
		return Snapshot{}, false
	}
	s.logger.Debug("Inventory released", "session", session)
	return inv.Snapshot(), true
}

func (s *Service) Get(session uuid.UUID) (*Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.inventories[session]
	if !ok {
		return nil, ErrNoInventory
	}
	return inv, nil
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inventories)
}

func (s *Service) AddItem(session uuid.UUID, itemID string, qty, upgradeLevel int) error {
	inv, err := s.Get(session)
	if err != nil {
		return err
	}
	return inv.AddItem(itemID, qty, upgradeLevel)
}

func (s *Service) RemoveItem(session uuid.UUID, idx, qty int) (Slot, error) {
	inv, err := s.Get(session)
	if err != nil {
		return Slot{}, err
	}
	return inv.RemoveItem(idx, qty)
}

func (s *Service) EquipItem(session uuid.UUID, idx int, class string, level int) error {
	inv, err := s.Get(session)
	if err != nil {
		return err
	}
	return inv.EquipItem(idx, class, level)
}

func (s *Service) UnequipItem(session uuid.UUID, category gamedata.EquipSlot) error {
	inv, err := s.Get(session)
	if err != nil {
		return err
	}
	return inv.UnequipItem(category)
}

func (s *Service) UseItem(session uuid.UUID, idx int) (Consumed, error) {
	inv, err := s.Get(session)
	if err != nil {
		return Consumed{}, err
	}
	return inv.UseItem(idx)
}

func (s *Service) UpgradeItem(session uuid.UUID, idx int, useProtection bool) (UpgradeResult, error) {
	inv, err := s.Get(session)
	if err != nil {
		return UpgradeResult{}, err
	}
	res, err := inv.Upgrade(idx, useProtection, s.rng)
	if err != nil {
		return UpgradeResult{}, err
	}
	s.logger.Info("Item upgrade attempted",
		"operation", "UpgradeItem",
		"session", session,
		"item_id", res.ItemID,
		"from", res.From,
		"to", res.To,
		"outcome", res.Outcome.String(),
		"protected", res.UsedProtection)
	return res, nil
}

// EquipmentBonuses returns zero bonuses for sessions without an inventory.
func (s *Service) EquipmentBonuses(session uuid.UUID) gamedata.Bonuses {
	inv, err := s.Get(session)
	if err != nil {
		return gamedata.Bonuses{}
	}
	return inv.Bonuses()
}

func (s *Service) AddYang(session uuid.UUID, amount int64) error {
	inv, err := s.Get(session)
	if err != nil {
		return err
	}
	inv.AddYang(amount)
	return nil
}

func (s *Service) SpendYang(session uuid.UUID, amount int64) error {
	inv, err := s.Get(session)
	if err != nil {
		return err
	}
	return inv.SpendYang(amount)
}
