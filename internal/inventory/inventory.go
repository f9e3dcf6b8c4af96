// Package inventory implements per-session item storage, equipment and the
// upgrade forge.
package inventory

import (
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
)

// EquipCount is the number of equipment categories.
const EquipCount = len(gamedata.EquipSlots)

type Slot struct {
	ItemID       string `json:"itemId"`
	Quantity     int    `json:"quantity"`
	UpgradeLevel int    `json:"upgradeLevel,omitempty"`
}

func (s Slot) Empty() bool {
	return s.ItemID == "" || s.Quantity <= 0
}

// Inventory is one character's items, equipment and currency. It is not
// safe for concurrent use.
type Inventory struct {
	Slots     []Slot
	Equipment [EquipCount]Slot
	Yang      int64

	data  *gamedata.Data
	dirty bool
}

func New(data *gamedata.Data, capacity int) *Inventory {
	return &Inventory{
		Slots: make([]Slot, capacity),
		data:  data,
		dirty: true,
	}
}

// Dirty reports whether the inventory changed since the last MarkClean.
func (inv *Inventory) Dirty() bool {
	return inv.dirty
}

func (inv *Inventory) MarkClean() {
	inv.dirty = false
}

func (inv *Inventory) slot(idx int) (*Slot, error) {
	if idx < 0 || idx >= len(inv.Slots) {
		return nil, ErrInvalidSlot
	}
	return &inv.Slots[idx], nil
}

func (inv *Inventory) firstEmpty() int {
	for i := range inv.Slots {
		if inv.Slots[i].Empty() {
			return i
		}
	}
	return -1
}

func (inv *Inventory) emptyCount() int {
	n := 0
	for i := range inv.Slots {
		if inv.Slots[i].Empty() {
			n++
		}
	}
	return n
}

// AddItem stores qty units of itemID. Plain stackable items top up partial
// stacks first and then fill empty slots; upgraded or non-stackable items
// always take fresh slots. Nothing is stored unless everything fits.
func (inv *Inventory) AddItem(itemID string, qty, upgradeLevel int) error {
	item, ok := inv.data.Item(itemID)
	if !ok {
		return ErrUnknownItem
	}
	if qty <= 0 || upgradeLevel < 0 || upgradeLevel > inv.data.Upgrade.MaxTier {
		return ErrInvalidQuantity
	}

	topUp := item.Stackable() && upgradeLevel == 0

	room := inv.emptyCount() * item.MaxStack
	if topUp {
		for _, s := range inv.Slots {
			if s.ItemID == itemID && s.UpgradeLevel == 0 && !s.Empty() {
				room += max(item.MaxStack-s.Quantity, 0)
			}
		}
	}
	if room < qty {
		return ErrInventoryFull
	}

	remaining := qty
	if topUp {
		for i := range inv.Slots {
			s := &inv.Slots[i]
			if remaining == 0 {
				break
			}
			if s.ItemID != itemID || s.UpgradeLevel != 0 || s.Empty() || s.Quantity >= item.MaxStack {
				continue
			}
			n := min(item.MaxStack-s.Quantity, remaining)
			s.Quantity += n
			remaining -= n
		}
	}
	for remaining > 0 {
		idx := inv.firstEmpty()
		n := min(item.MaxStack, remaining)
		inv.Slots[idx] = Slot{ItemID: itemID, Quantity: n, UpgradeLevel: upgradeLevel}
		remaining -= n
	}

	inv.dirty = true
	return nil
}

// RemoveItem takes qty units out of slot idx and returns what was removed.
func (inv *Inventory) RemoveItem(idx, qty int) (Slot, error) {
	s, err := inv.slot(idx)
	if err != nil {
		return Slot{}, err
	}
	if s.Empty() {
		return Slot{}, ErrSlotEmpty
	}
	if qty <= 0 {
		return Slot{}, ErrInvalidQuantity
	}
	if s.Quantity < qty {
		return Slot{}, ErrInsufficientQuantity
	}

	removed := Slot{ItemID: s.ItemID, Quantity: qty, UpgradeLevel: s.UpgradeLevel}
	s.Quantity -= qty
	if s.Quantity == 0 {
		*s = Slot{}
	}
	inv.dirty = true
	return removed, nil
}

// EquipItem moves the item in slot idx into its equipment category. The
// previously equipped item, if any, takes the vacated slot.
func (inv *Inventory) EquipItem(idx int, class string, level int) error {
	s, err := inv.slot(idx)
	if err != nil {
		return err
	}
	if s.Empty() {
		return ErrSlotEmpty
	}
	item, ok := inv.data.Item(s.ItemID)
	if !ok || !item.Equippable() {
		return ErrNotEquippable
	}
	if item.Class != "" && item.Class != class {
		return ErrClassMismatch
	}
	if level < item.Level {
		return ErrLevelTooLow
	}

	cat := item.Slot.Index()
	incoming := Slot{ItemID: s.ItemID, Quantity: 1, UpgradeLevel: s.UpgradeLevel}
	*s = inv.Equipment[cat]
	inv.Equipment[cat] = incoming
	inv.dirty = true
	return nil
}

// UnequipItem moves the item in category back to the first free slot.
func (inv *Inventory) UnequipItem(category gamedata.EquipSlot) error {
	cat := category.Index()
	if cat < 0 {
		return ErrNotEquippable
	}
	if inv.Equipment[cat].Empty() {
		return ErrEquipSlotEmpty
	}
	idx := inv.firstEmpty()
	if idx < 0 {
		return ErrInventoryFull
	}

	inv.Slots[idx] = inv.Equipment[cat]
	inv.Equipment[cat] = Slot{}
	inv.dirty = true
	return nil
}

// Consumed is what using an item restores. Applying it is up to the caller.
type Consumed struct {
	ItemID string
	Heal   float64
	Mana   float64
}

func (inv *Inventory) UseItem(idx int) (Consumed, error) {
	s, err := inv.slot(idx)
	if err != nil {
		return Consumed{}, err
	}
	if s.Empty() {
		return Consumed{}, ErrSlotEmpty
	}
	item, ok := inv.data.Item(s.ItemID)
	if !ok || !item.Consumable {
		return Consumed{}, ErrNotConsumable
	}

	s.Quantity--
	if s.Quantity == 0 {
		*s = Slot{}
	}
	inv.dirty = true
	return Consumed{ItemID: item.ID, Heal: item.Heal, Mana: item.Mana}, nil
}

// Bonuses sums the stat contribution of everything equipped.
func (inv *Inventory) Bonuses() gamedata.Bonuses {
	var b gamedata.Bonuses
	for _, s := range inv.Equipment {
		if s.Empty() {
			continue
		}
		if item, ok := inv.data.Item(s.ItemID); ok {
			b = b.Add(item.BonusesAt(s.UpgradeLevel))
		}
	}
	return b
}

// AddYang credits currency. Negative amounts are ignored.
func (inv *Inventory) AddYang(amount int64) {
	if amount <= 0 {
		return
	}
	inv.Yang += amount
	inv.dirty = true
}

func (inv *Inventory) SpendYang(amount int64) error {
	if amount < 0 {
		return ErrInvalidQuantity
	}
	if inv.Yang < amount {
		return ErrInsufficientYang
	}
	inv.Yang -= amount
	inv.dirty = true
	return nil
}

// Count returns how many units of itemID the inventory holds.
func (inv *Inventory) Count(itemID string) int {
	n := 0
	for _, s := range inv.Slots {
		if s.ItemID == itemID && !s.Empty() {
			n += s.Quantity
		}
	}
	return n
}

// consume removes one unit of itemID from the first slot holding it.
func (inv *Inventory) consume(itemID string) bool {
	for i := range inv.Slots {
		s := &inv.Slots[i]
		if s.ItemID != itemID || s.Empty() {
			continue
		}
		s.Quantity--
		if s.Quantity == 0 {
			*s = Slot{}
		}
		inv.dirty = true
		return true
	}
	return false
}

// State renders the inventory for its owner.
func (inv *Inventory) State() *event.InventoryState {
	st := &event.InventoryState{Yang: inv.Yang}
	for i, s := range inv.Slots {
		if s.Empty() {
			continue
		}
		st.Slots = append(st.Slots, event.SlotState{
			Index:        i,
			ItemID:       s.ItemID,
			Quantity:     s.Quantity,
			UpgradeLevel: s.UpgradeLevel,
		})
	}
	for i, s := range inv.Equipment {
		if s.Empty() {
			continue
		}
		st.Equipment = append(st.Equipment, event.SlotState{
			Index:        i,
			ItemID:       s.ItemID,
			Quantity:     s.Quantity,
			UpgradeLevel: s.UpgradeLevel,
		})
	}
	return st
}
