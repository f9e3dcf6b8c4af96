package zone

import (
	"realm-server/internal/ecs"
	"realm-server/internal/event"
)

var visibleFilter = ecs.Filter{
	All:  ecs.MaskOf(ecs.CompPosition),
	None: ecs.MaskOf(ecs.TagDeparting),
}

// broadcast sends this tick's frame to every active session. Events and
// entity states are shared between frames and never mutated afterwards.
func (z *Zone) broadcast(tick uint64) {
	entities := z.entityStates()
	events := z.events

	for _, s := range z.activeSessions() {
		if s.sink == nil {
			continue
		}
		frame := &event.Frame{
			Zone:     z.def.ID,
			Tick:     tick,
			You:      s.entity,
			Events:   events,
			Entities: entities,
		}

		inv, err := z.inventories.Get(s.id)
		if err == nil && inv.Dirty() {
			frame.Inventory = inv.State()
		}
		if !s.sink.Send(frame) {
			z.logger.Debug("Frame dropped", "session", s.id, "tick", tick)
			continue
		}
		if frame.Inventory != nil {
			inv.MarkClean()
		}
	}
}

func (z *Zone) entityStates() []event.EntityState {
	w := z.world
	var out []event.EntityState
	w.Each(visibleFilter, func(e ecs.Entity) {
		pos := w.Positions.Value(e)
		st := event.EntityState{ID: e, X: pos[0], Y: pos[1], Z: pos[2]}

		switch {
		case w.Has(e, ecs.TagPlayer):
			st.Kind = "player"
			st.Name = w.Network.Value(e).Name
			st.Level = w.Stats.Value(e).Level
			if cd, ok := w.Cooldowns.Get(e); ok {
				st.Cooldowns = append([]float64(nil), cd.Remaining[:]...)
			}
		case w.Has(e, ecs.CompMonster):
			m := w.Monsters.Value(e)
			st.Kind = "monster"
			st.Name = m.Name
			st.Level = m.Level
			st.AIMode = w.AI.Value(e).Mode.String()
		case w.Has(e, ecs.CompLootDrop):
			l := w.Loot.Value(e)
			st.Kind = "loot"
			st.ItemID = l.ItemID
			st.Quantity = l.Quantity
			st.Yang = l.Yang
		case w.Has(e, ecs.CompProjectile):
			st.Kind = "projectile"
		default:
			return
		}

		if h, ok := w.Healths.Get(e); ok {
			st.HP, st.MaxHP = h.Current, h.Max
		}
		if m, ok := w.Manas.Get(e); ok {
			st.MP, st.MaxMP = m.Current, m.Max
		}
		if b, ok := w.Buffs.Get(e); ok {
			st.BuffID = b.ID
		}
		st.Dead = w.Has(e, ecs.TagDead)
		out = append(out, st)
	})
	return out
}
