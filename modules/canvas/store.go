package canvas

import (
	"fmt"

	domain "github.com/example/canvas-relay/domain/canvas"
)

// ObjectStore is the insertion-ordered collection of one kind of canvas
// object in a room. It is not safe for concurrent use; the owning Room
// serializes access.
//
// Stored records are never modified in place. Update swaps in a merged copy,
// so slices handed out by All stay consistent.
type ObjectStore struct {
	kind    domain.Kind
	objects []Fields
}

// NewObjectStore creates an empty store for kind.
func NewObjectStore(kind domain.Kind) *ObjectStore {
	return &ObjectStore{kind: kind}
}

// Kind returns the kind of object held by the store.
func (s *ObjectStore) Kind() domain.Kind {
	return s.kind
}

// ID extracts the object id from a record of this store's kind.
func (s *ObjectStore) ID(obj Fields) (string, error) {
	field := s.kind.IDField()
	id, ok := obj.String(field)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingID, field)
	}
	return id, nil
}

// Add appends obj unless an object with the same id is already present.
// It reports whether the object was added.
func (s *ObjectStore) Add(obj Fields) (bool, error) {
	id, err := s.ID(obj)
	if err != nil {
		return false, err
	}
	if s.index(id) >= 0 {
		return false, nil
	}
	s.objects = append(s.objects, obj.attributes())
	return true, nil
}

// Update merges fields over the first object with the given id. Fields
// absent from the update are kept. Unknown ids are ignored.
func (s *ObjectStore) Update(id string, fields Fields) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	merged := s.objects[i].clone()
	for k, v := range fields.attributes() {
		merged[k] = v
	}
	s.objects[i] = merged
	return true
}

// Remove deletes every object with the given id and returns how many were removed.
func (s *ObjectStore) Remove(id string) int {
	kept := make([]Fields, 0, len(s.objects))
	for _, obj := range s.objects {
		if oid, _ := obj.String(s.kind.IDField()); oid == id {
			continue
		}
		kept = append(kept, obj)
	}
	removed := len(s.objects) - len(kept)
	s.objects = kept
	return removed
}

// All returns the objects in insertion order. The result is never nil.
func (s *ObjectStore) All() []Fields {
	out := make([]Fields, len(s.objects))
	copy(out, s.objects)
	return out
}

// Len returns the number of stored objects.
func (s *ObjectStore) Len() int {
	return len(s.objects)
}

func (s *ObjectStore) index(id string) int {
	for i, obj := range s.objects {
		if oid, _ := obj.String(s.kind.IDField()); oid == id {
			return i
		}
	}
	return -1
}
