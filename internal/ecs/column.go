package ecs

type column interface {
	grow(n int)
	clear(e Entity)
}

// Column is one structure-of-arrays component store. Values are indexed by
// entity id; presence is tracked in the world's mask.
type Column[T any] struct {
	id    ComponentID
	world *World
	data  []T
}

func newColumn[T any](w *World, id ComponentID) *Column[T] {
	c := &Column[T]{id: id, world: w}
	w.columns = append(w.columns, c)
	return c
}

func (c *Column[T]) grow(n int) {
	if n <= len(c.data) {
		return
	}
	c.data = append(c.data, make([]T, n-len(c.data))...)
}

func (c *Column[T]) clear(e Entity) {
	var zero T
	c.data[e] = zero
}

func (c *Column[T]) ID() ComponentID {
	return c.id
}

// Set attaches the component or overwrites it if already present. It
// returns false when e is not alive.
func (c *Column[T]) Set(e Entity, v T) bool {
	if !c.world.Alive(e) {
		return false
	}
	c.data[e] = v
	c.world.masks[e] = c.world.masks[e].With(c.id)
	return true
}

// Get returns a pointer into the column. The pointer is valid until the
// next Create that grows the world.
func (c *Column[T]) Get(e Entity) (*T, bool) {
	if !c.Has(e) {
		return nil, false
	}
	return &c.data[e], true
}

// Value returns a copy of the component, or the zero value when absent.
func (c *Column[T]) Value(e Entity) T {
	if !c.Has(e) {
		var zero T
		return zero
	}
	return c.data[e]
}

func (c *Column[T]) Has(e Entity) bool {
	return c.world.Has(e, c.id)
}

// Remove detaches the component. Removing a missing component is a no-op.
func (c *Column[T]) Remove(e Entity) {
	if !c.Has(e) {
		return
	}
	c.clear(e)
	c.world.masks[e] = c.world.masks[e].Without(c.id)
}
