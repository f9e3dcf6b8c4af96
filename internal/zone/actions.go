package zone

import (
	"errors"
	"strconv"

	"realm-server/internal/combat"
	"realm-server/internal/ecs"
	"realm-server/internal/event"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	pickupRange     = 3.0
	lootLockSeconds = 15.0
	lootLifetime    = 60.0
)

var ErrNotDead = errors.New("entity is not dead")

func (z *Zone) applyInputs(inputs []queuedInput) {
	for _, q := range inputs {
		s := z.session(q.session)
		if s == nil || !s.is(StateActive) {
			continue
		}
		if err := z.apply(s, q.input); err != nil {
			z.logger.Debug("Input rejected",
				"session", s.id,
				"kind", q.input.Kind,
				"error", err)
		}
	}
}

func (z *Zone) apply(s *session, in Input) error {
	w := z.world
	e := s.entity
	if !w.Alive(e) || w.Has(e, ecs.TagDeparting) {
		return ErrNotActive
	}
	if w.Has(e, ecs.TagDead) && in.Kind != InputRespawn {
		return combat.ErrCasterDead
	}

	switch in.Kind {
	case InputMove:
		z.move(e, mgl64.Vec3(in.Move))
	case InputTarget:
		w.Targets.Set(e, ecs.Target{Entity: in.Target})
	case InputAttack:
		if aa, ok := w.AutoAttacks.Get(e); ok {
			aa.Enabled = in.Attack
		}
	case InputSkill:
		res, err := z.resolver.Resolve(e, in.Slot)
		if err != nil {
			return err
		}
		z.emit(res.Events...)
	case InputEquip:
		cs := w.Stats.Value(e)
		if err := z.inventories.EquipItem(s.id, in.SlotIndex, cs.Class, cs.Level); err != nil {
			return err
		}
		z.resolver.Recompute(e)
	case InputUnequip:
		if err := z.inventories.UnequipItem(s.id, in.Category); err != nil {
			return err
		}
		z.resolver.Recompute(e)
	case InputUse:
		return z.useItem(s, e, in.SlotIndex)
	case InputUpgrade:
		res, err := z.inventories.UpgradeItem(s.id, in.SlotIndex, in.Protect)
		if err != nil {
			return err
		}
		z.emit(event.Event{
			Kind:    event.Upgrade,
			Target:  e,
			ItemID:  res.ItemID,
			Level:   res.To,
			Outcome: res.Outcome.String(),
		})
	case InputDrop:
		removed, err := z.inventories.RemoveItem(s.id, in.SlotIndex, in.Quantity)
		if err != nil {
			return err
		}
		z.spawnLoot(w.Positions.Value(e), ecs.LootDrop{
			ItemID:       removed.ItemID,
			Quantity:     removed.Quantity,
			UpgradeLevel: removed.UpgradeLevel,
			Remaining:    lootLifetime,
		})
	case InputAllocate:
		return z.resolver.AllocateStat(e, in.Stat)
	case InputPickup:
		return z.pickup(s, e, in.Loot)
	case InputRespawn:
		return z.respawn(e)
	default:
		return ErrUnknownInput
	}
	return nil
}

// move sets the entity's velocity from a direction. Directions longer than
// one are normalised; shorter ones walk slower.
func (z *Zone) move(e ecs.Entity, dir mgl64.Vec3) {
	speed := z.world.Stats.Value(e).MoveSpeed
	if l := dir.Len(); l > 1 {
		dir = dir.Mul(1 / l)
	}
	z.world.Velocities.Set(e, dir.Mul(speed))
}

func (z *Zone) useItem(s *session, e ecs.Entity, idx int) error {
	used, err := z.inventories.UseItem(s.id, idx)
	if err != nil {
		return err
	}

	w := z.world
	if used.Heal > 0 {
		before := w.Healths.Value(e).Current
		after := w.Heal(e, used.Heal)
		z.emit(event.Event{
			Kind:        event.HealKind,
			Caster:      e,
			Target:      e,
			ItemID:      used.ItemID,
			Amount:      after - before,
			RemainingHP: event.HP(after),
		})
	}
	if used.Mana > 0 {
		w.RestoreMana(e, used.Mana)
	}
	z.emit(event.Event{Kind: event.ItemUsed, Target: e, ItemID: used.ItemID})
	return nil
}

func (z *Zone) pickup(s *session, e, loot ecs.Entity) error {
	w := z.world
	drop, ok := w.Loot.Get(loot)
	if !ok {
		return ErrNoLoot
	}
	d := w.Positions.Value(loot).Sub(w.Positions.Value(e))
	if d.Dot(d) > pickupRange*pickupRange {
		return ErrLootOutOfRange
	}
	if drop.LockRemaining > 0 && drop.OwnerHash != ownerHash(s.characterID) {
		return ErrLootLocked
	}

	if drop.Yang > 0 {
		if err := z.inventories.AddYang(s.id, drop.Yang); err != nil {
			return err
		}
	} else if err := z.inventories.AddItem(s.id, drop.ItemID, drop.Quantity, drop.UpgradeLevel); err != nil {
		return err
	}

	z.emit(event.Event{
		Kind:     event.LootPickup,
		Caster:   e,
		Target:   loot,
		ItemID:   drop.ItemID,
		Quantity: drop.Quantity,
		Amount:   float64(drop.Yang),
	})
	z.removeEntity(loot)
	return nil
}

// respawn brings a dead player back at the zone spawn point with full
// health and mana.
func (z *Zone) respawn(e ecs.Entity) error {
	w := z.world
	if !w.Has(e, ecs.TagDead) {
		return ErrNotDead
	}
	cs := w.Stats.Value(e)
	class, ok := z.data.Class(cs.Class)
	if !ok {
		return combat.ErrNotAllocatable
	}

	w.Untag(e, ecs.TagDead)
	w.Positions.Set(e, z.def.SpawnPoint())
	w.Velocities.Set(e, mgl64.Vec3{})
	w.Targets.Set(e, ecs.Target{})
	w.AutoAttacks.Set(e, playerAutoAttack(class))
	w.Buffs.Remove(e)
	z.resolver.Recompute(e)
	restoreVitals(w, e)

	z.emit(event.Event{Kind: event.Spawn, Target: e})
	return nil
}

// ownerHash identifies the character a loot drop is reserved for.
func ownerHash(characterID int64) uint64 {
	return xxhash.Sum64String(strconv.FormatInt(characterID, 10))
}
