package ref

// Ref is a relation field that is either only an id (Unresolved) or an id
// plus the loaded entity (Resolved). Resolution happens in stores, callers
// only ask Entity().
type Ref[T any] struct {
	id     uint
	entity *T
}

func Unresolved[T any](id uint) Ref[T] {
	return Ref[T]{id: id}
}

func Resolved[T any](id uint, entity *T) Ref[T] {
	return Ref[T]{id: id, entity: entity}
}

func (r Ref[T]) ID() uint { return r.id }

// IsZero reports an empty relation (no id, nothing loaded).
func (r Ref[T]) IsZero() bool { return r.id == 0 && r.entity == nil }

func (r Ref[T]) IsResolved() bool { return r.entity != nil }

func (r Ref[T]) Entity() (*T, bool) {
	return r.entity, r.entity != nil
}
