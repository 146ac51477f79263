package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Identifiable is implemented by entities that can stand behind a Reference.
type Identifiable interface {
	Identity() string
}

// Reference points at an entity either by bare identifier or by an inlined
// snapshot of it. On the wire it is a JSON string or a JSON object.
type Reference[T Identifiable] struct {
	id       string
	resolved *T
}

func IDRef[T Identifiable](id string) Reference[T] {
	return Reference[T]{id: id}
}

func ResolvedRef[T Identifiable](v T) Reference[T] {
	return Reference[T]{resolved: &v}
}

// ID returns the identifier regardless of which form the reference holds.
// All identity comparisons go through it.
func (r Reference[T]) ID() string {
	if r.resolved != nil {
		return (*r.resolved).Identity()
	}
	return r.id
}

// Snapshot returns the inlined entity, if any.
func (r Reference[T]) Snapshot() (T, bool) {
	if r.resolved == nil {
		var zero T
		return zero, false
	}
	return *r.resolved, true
}

func (r Reference[T]) IsResolved() bool { return r.resolved != nil }

func (r Reference[T]) IsZero() bool { return r.resolved == nil && r.id == "" }

// Refers reports whether r points at the entity with the given identifier.
func (r Reference[T]) Refers(id string) bool {
	return id != "" && r.ID() == id
}

func (r Reference[T]) MarshalJSON() ([]byte, error) {
	if r.resolved != nil {
		return json.Marshal(*r.resolved)
	}
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

func (r *Reference[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = Reference[T]{}
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = IDRef[T](id)
		return nil
	case data[0] == '{':
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*r = ResolvedRef(v)
		return nil
	default:
		return fmt.Errorf("reference must be a string or an object, got %s", data)
	}
}
