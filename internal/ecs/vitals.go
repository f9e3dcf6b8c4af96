package ecs

// ApplyDamage lowers e's health by amount, clamping at zero. Reaching zero
// tags the entity Dead. It returns the remaining health and whether this
// call killed the entity. Damage against a dead entity does nothing.
func (w *World) ApplyDamage(e, source Entity, amount float64) (float64, bool) {
	h, ok := w.Healths.Get(e)
	if !ok || w.masks[e].Has(TagDead) {
		return 0, false
	}
	if amount < 0 {
		amount = 0
	}

	h.Current -= amount
	if m, ok := w.Monsters.Get(e); ok && source != 0 {
		m.LastAttacker = source
	}
	if h.Current > 0 {
		return h.Current, false
	}

	h.Current = 0
	w.Tag(e, TagDead)
	w.AutoAttacks.Remove(e)
	w.Targets.Remove(e)
	return 0, true
}

// Heal raises e's health by amount without exceeding Max and returns the
// new value. Dead entities are not healed.
func (w *World) Heal(e Entity, amount float64) float64 {
	h, ok := w.Healths.Get(e)
	if !ok {
		return 0
	}
	if w.masks[e].Has(TagDead) || amount <= 0 {
		return h.Current
	}
	h.Current = min(h.Current+amount, h.Max)
	return h.Current
}

// RestoreMana raises e's mana by amount without exceeding Max.
func (w *World) RestoreMana(e Entity, amount float64) float64 {
	m, ok := w.Manas.Get(e)
	if !ok {
		return 0
	}
	if w.masks[e].Has(TagDead) || amount <= 0 {
		return m.Current
	}
	m.Current = min(m.Current+amount, m.Max)
	return m.Current
}

// ClampVitals forces every Health and Mana value into [0, Max].
func (w *World) ClampVitals() {
	for i := Entity(1); i < w.next; i++ {
		if !w.allocated[i] {
			continue
		}
		if w.masks[i].Has(CompHealth) {
			h := &w.Healths.data[i]
			h.Current = clamp(h.Current, 0, h.Max)
		}
		if w.masks[i].Has(CompMana) {
			m := &w.Manas.data[i]
			m.Current = clamp(m.Current, 0, m.Max)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}
