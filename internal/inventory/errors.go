package inventory

import "errors"

var (
	ErrNoInventory          = errors.New("no inventory for session")
	ErrUnknownItem          = errors.New("unknown item")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidSlot          = errors.New("invalid inventory slot")
	ErrInventoryFull        = errors.New("inventory full")
	ErrSlotEmpty            = errors.New("inventory slot empty")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrNotEquippable        = errors.New("item cannot be equipped")
	ErrClassMismatch        = errors.New("item requires another class")
	ErrLevelTooLow          = errors.New("level too low for item")
	ErrEquipSlotEmpty       = errors.New("nothing equipped in that slot")
	ErrNotConsumable        = errors.New("item is not consumable")
	ErrMaxUpgrade           = errors.New("item cannot be upgraded further")
	ErrMissingMaterial      = errors.New("missing upgrade material")
	ErrMissingProtection    = errors.New("missing protection item")
	ErrInsufficientYang     = errors.New("insufficient yang")
)
