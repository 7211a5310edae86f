package replication

import "github.com/samp-server-go/netcore/bitio"

// FastArray is the per-element add/delete/change-tracked array property
// kind: a map of element_id → T (T implementing RepLayout), a changed-id
// set, and a deleted-id set, both cleared by AcknowledgeChanges.
type FastArray[T RepLayout] struct {
	handle uint32

	items map[uint32]T
	order []uint32 // insertion order, for deterministic encode

	changedIDs map[uint32]bool
	changedOrder []uint32
	deletedOrder []uint32

	nextID              uint32
	arrayReplicationKey uint32
	baseReplicationKey  uint32
}

// NewFastArray returns an empty FastArray for the given layout handle.
func NewFastArray[T RepLayout](handle uint32) *FastArray[T] {
	return &FastArray[T]{
		handle:     handle,
		items:      make(map[uint32]T),
		changedIDs: make(map[uint32]bool),
	}
}

func (a *FastArray[T]) Handle() uint32 { return a.handle }

// Add assigns a fresh, monotonically increasing element id to value and
// marks it changed.
func (a *FastArray[T]) Add(value T) uint32 {
	a.nextID++
	id := a.nextID
	a.items[id] = value
	a.order = append(a.order, id)
	a.markChanged(id)
	a.arrayReplicationKey++
	return id
}

func (a *FastArray[T]) markChanged(id uint32) {
	if !a.changedIDs[id] {
		a.changedIDs[id] = true
		a.changedOrder = append(a.changedOrder, id)
	}
}

// GetMut returns the item for id for in-place mutation, marking it
// changed.
func (a *FastArray[T]) GetMut(id uint32) (T, bool) {
	v, ok := a.items[id]
	if ok {
		a.markChanged(id)
		a.arrayReplicationKey++
	}
	return v, ok
}

// Remove deletes id, recording it in the next serialized deleted-ids list.
func (a *FastArray[T]) Remove(id uint32) {
	if _, ok := a.items[id]; !ok {
		return
	}
	delete(a.items, id)
	delete(a.changedIDs, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	for i, oid := range a.changedOrder {
		if oid == id {
			a.changedOrder = append(a.changedOrder[:i], a.changedOrder[i+1:]...)
			break
		}
	}
	a.deletedOrder = append(a.deletedOrder, id)
	a.arrayReplicationKey++
}

// IsChanged reports whether anything was added, mutated, or removed since
// the last AcknowledgeChanges.
func (a *FastArray[T]) IsChanged() bool {
	return len(a.changedOrder) > 0 || len(a.deletedOrder) > 0
}

// AcknowledgeChanges clears both the changed and deleted id sets.
func (a *FastArray[T]) AcknowledgeChanges() {
	a.changedIDs = make(map[uint32]bool)
	a.changedOrder = nil
	a.deletedOrder = nil
}

// WriteValue serializes the array per the fast-array wire format:
// anything_changed bit; if set, array_replication_key, base_replication_key,
// deleted count, changed count, deleted ids, then for each changed id its
// element_id, a literal 1 bit, and its full layout serialization.
func (a *FastArray[T]) WriteValue(w *bitio.Writer) {
	anythingChanged := a.IsChanged()
	w.WriteBit(anythingChanged)
	if !anythingChanged {
		return
	}
	w.Write(32, uint64(a.arrayReplicationKey))
	w.Write(32, uint64(a.baseReplicationKey))
	w.Write(32, uint64(len(a.deletedOrder)))
	w.Write(32, uint64(len(a.changedOrder)))
	for _, id := range a.deletedOrder {
		w.Write(32, uint64(id))
	}
	for _, id := range a.changedOrder {
		w.Write(32, uint64(id))
		w.WriteBit(true)
		a.items[id].SerializeLayoutProperties(w, true)
	}
}
