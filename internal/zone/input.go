package zone

import (
	"sort"

	"realm-server/internal/ecs"
	"realm-server/internal/gamedata"

	"github.com/google/uuid"
)

type InputKind string

const (
	InputMove     InputKind = "move"
	InputTarget   InputKind = "target"
	InputAttack   InputKind = "attack"
	InputSkill    InputKind = "skill"
	InputEquip    InputKind = "equip"
	InputUnequip  InputKind = "unequip"
	InputUse      InputKind = "use"
	InputUpgrade  InputKind = "upgrade"
	InputDrop     InputKind = "drop"
	InputAllocate InputKind = "allocate"
	InputPickup   InputKind = "pickup"
	InputRespawn  InputKind = "respawn"
)

// Input is one player action. Only the fields relevant to Kind are read.
type Input struct {
	Kind      InputKind          `json:"kind"`
	Move      [3]float64         `json:"move,omitempty"`
	Slot      int                `json:"slot,omitempty"`
	Target    ecs.Entity         `json:"target,omitempty"`
	Attack    bool               `json:"attack,omitempty"`
	SlotIndex int                `json:"slotIndex,omitempty"`
	Quantity  int                `json:"quantity,omitempty"`
	Category  gamedata.EquipSlot `json:"category,omitempty"`
	Protect   bool               `json:"protect,omitempty"`
	Stat      gamedata.Attribute `json:"stat,omitempty"`
	Loot      ecs.Entity         `json:"loot,omitempty"`
}

type queuedInput struct {
	session uuid.UUID
	seq     uint64
	input   Input
}

// inputQueue buffers inputs between ticks. Callers hold Zone.mu.
type inputQueue struct {
	limit      int
	pending    []queuedInput
	perSession map[uuid.UUID]int
	drops      map[uuid.UUID]uint64
}

func newInputQueue(limit int) *inputQueue {
	return &inputQueue{
		limit:      limit,
		perSession: make(map[uuid.UUID]int),
		drops:      make(map[uuid.UUID]uint64),
	}
}

// push reports false and the session's running drop count when the session
// already used its share of this tick.
func (q *inputQueue) push(in queuedInput) (bool, uint64) {
	count := q.perSession[in.session]
	if q.limit > 0 && count >= q.limit {
		q.drops[in.session]++
		return false, q.drops[in.session]
	}
	q.perSession[in.session] = count + 1
	q.pending = append(q.pending, in)
	return true, 0
}

// drain empties the queue. Inputs come back ordered by session join order,
// and by arrival within a session.
func (q *inputQueue) drain() []queuedInput {
	out := q.pending
	q.pending = nil
	if len(q.perSession) > 0 {
		q.perSession = make(map[uuid.UUID]int)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

func (q *inputQueue) forget(session uuid.UUID) {
	delete(q.drops, session)
}
