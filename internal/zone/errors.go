package zone

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already joined")
	ErrAlreadyInZone   = errors.New("character already in zone")
	ErrNotActive       = errors.New("session not active")
	ErrInputDropped    = errors.New("input limit reached for this tick")
	ErrZoneClosed      = errors.New("zone is shutting down")
	ErrUnknownZone     = errors.New("unknown zone")
	ErrLootLocked      = errors.New("loot belongs to another player")
	ErrLootOutOfRange  = errors.New("loot out of range")
	ErrNoLoot          = errors.New("no such loot")
	ErrUnknownInput    = errors.New("unknown input kind")
)
