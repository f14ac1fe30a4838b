package models

// Optional marks a field that may be absent from a request. Set is false
// when the field was not supplied at all.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// TodoPatch is a partial update. Only fields with Set == true are written.
// A set Description with a nil Value clears the column.
type TodoPatch struct {
	Title       Optional[string]
	Description Optional[*string]
	Status      Optional[Status]
}

func (p TodoPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Status.Set
}
