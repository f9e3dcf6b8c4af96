package inventory

import (
	"encoding/json"
	"fmt"

	"realm-server/internal/gamedata"
)

// Snapshot is the persisted form of an inventory.
type Snapshot struct {
	Slots     []Slot                      `json:"slots"`
	Equipment map[gamedata.EquipSlot]Slot `json:"equipment,omitempty"`
	Yang      int64                       `json:"yang"`
}

func (inv *Inventory) Snapshot() Snapshot {
	snap := Snapshot{
		Slots: make([]Slot, len(inv.Slots)),
		Yang:  inv.Yang,
	}
	copy(snap.Slots, inv.Slots)
	for i, s := range inv.Equipment {
		if s.Empty() {
			continue
		}
		if snap.Equipment == nil {
			snap.Equipment = make(map[gamedata.EquipSlot]Slot)
		}
		snap.Equipment[gamedata.EquipSlots[i]] = s
	}
	return snap
}

// Restore replaces the inventory's contents with snap. Entries naming
// unknown items or categories are skipped and quantities are clamped to the
// item's stack size. The slot array grows if the snapshot has more slots
// than the configured capacity.
func (inv *Inventory) Restore(snap Snapshot) {
	n := max(len(inv.Slots), len(snap.Slots))
	inv.Slots = make([]Slot, n)
	inv.Equipment = [EquipCount]Slot{}
	inv.Yang = max(snap.Yang, 0)

	for i, s := range snap.Slots {
		if s.Empty() {
			continue
		}
		item, ok := inv.data.Item(s.ItemID)
		if !ok {
			continue
		}
		inv.Slots[i] = Slot{
			ItemID:       s.ItemID,
			Quantity:     min(s.Quantity, item.MaxStack),
			UpgradeLevel: clampLevel(s.UpgradeLevel, inv.data.Upgrade.MaxTier),
		}
	}
	for cat, s := range snap.Equipment {
		idx := cat.Index()
		if idx < 0 || s.Empty() {
			continue
		}
		item, ok := inv.data.Item(s.ItemID)
		if !ok || item.Slot != cat {
			continue
		}
		inv.Equipment[idx] = Slot{
			ItemID:       s.ItemID,
			Quantity:     1,
			UpgradeLevel: clampLevel(s.UpgradeLevel, inv.data.Upgrade.MaxTier),
		}
	}
	inv.dirty = true
}

func clampLevel(level, maxTier int) int {
	return max(0, min(level, maxTier))
}

func (s Snapshot) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inventory snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalSnapshot decodes raw. Empty input yields nil and no error.
func UnmarshalSnapshot(raw []byte) (*Snapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inventory snapshot: %w", err)
	}
	return &s, nil
}
