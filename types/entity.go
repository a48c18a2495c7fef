package types

import "time"

// Entity carries creation and modification timestamps.
// Embed it in mutable domain types.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	return NewEntityAt(time.Now())
}

// NewEntityAt creates a new Entity stamped with the given time in UTC.
func NewEntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{
		CreatedAt: t,
		UpdatedAt: t,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
