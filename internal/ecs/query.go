package ecs

// Filter selects entities that have every component in All and none in
// None.
type Filter struct {
	All  Mask
	None Mask
}

var (
	// Targetable matches entities that skills and auto-attacks may hit.
	Targetable = Filter{
		All:  MaskOf(CompPosition, CompHealth),
		None: MaskOf(TagDead, TagDeparting),
	}

	// Living matches entities with Health that are not dead.
	Living = Filter{
		All:  MaskOf(CompHealth),
		None: MaskOf(TagDead),
	}
)

func (f Filter) Matches(m Mask) bool {
	return m.ContainsAll(f.All) && !m.ContainsAny(f.None)
}

// Query returns matching entities in ascending id order.
func (w *World) Query(f Filter) []Entity {
	var out []Entity
	w.Each(f, func(e Entity) {
		out = append(out, e)
	})
	return out
}

// Each calls fn for every matching entity in ascending id order. fn may
// destroy the entity it is given.
func (w *World) Each(f Filter, fn func(e Entity)) {
	for i := Entity(1); i < w.next; i++ {
		if !w.allocated[i] {
			continue
		}
		if f.Matches(w.masks[i]) {
			fn(i)
		}
	}
}

// Match reports whether e is alive and satisfies f.
func (w *World) Match(e Entity, f Filter) bool {
	return w.Alive(e) && f.Matches(w.masks[e])
}
