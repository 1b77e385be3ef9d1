package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Registry is the single-owner store of type entities. It keeps insertion
// order so every traversal is deterministic, a tag index mapping
// "struct foo" style names to entity ids, and a name index keyed by exact
// spelling. Ids fold case, so Float and float need the name index to stay
// apart.
type Registry struct {
	entities map[string]*TypeEntity
	order    []string
	tags     map[string]string
	names    map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*TypeEntity),
		tags:     make(map[string]string),
		names:    make(map[string]string),
	}
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Lookup resolves a type name by its exact spelling.
func (r *Registry) Lookup(name string) (string, bool) {
	id, ok := r.names[nameKey(name)]
	return id, ok
}

// SetName renames the entity registered under id and moves its name index
// entry with it.
func (r *Registry) SetName(id, name string) {
	e, ok := r.entities[id]
	if !ok {
		return
	}
	if k := nameKey(e.Name); r.names[k] == id {
		delete(r.names, k)
	}
	e.Name = name
	r.indexName(e)
}

func (r *Registry) indexName(e *TypeEntity) {
	k := nameKey(e.Name)
	if _, ok := r.names[k]; !ok && k != "" {
		r.names[k] = e.ID
	}
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	return len(r.order)
}

// Get looks up an entity by id.
func (r *Registry) Get(id string) (*TypeEntity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.entities[id]
	return ok
}

// Add registers e. It fails if the id is taken.
func (r *Registry) Add(e *TypeEntity) error {
	if e.ID == "" {
		return fmt.Errorf("entity %q has no id", e.Name)
	}
	if _, ok := r.entities[e.ID]; ok {
		return fmt.Errorf("duplicate entity id %s", e.ID)
	}
	r.insert(e)
	return nil
}

// AddUnique registers e under its own id, or under the first free
// id_2, id_3, ... when the id is empty or held by another spelling. The
// entity's name is left as written.
func (r *Registry) AddUnique(e *TypeEntity) *TypeEntity {
	if e.ID == "" || r.Has(e.ID) {
		e.ID = r.UniqueID(e.Name)
	}
	r.insert(e)
	return e
}

// insert expects a non-empty id that is not registered yet.
func (r *Registry) insert(e *TypeEntity) {
	r.entities[e.ID] = e
	r.order = append(r.order, e.ID)
	r.indexName(e)
	if e.Tag != "" {
		r.SetTag(TagKeyword(e.Kind), e.Tag, e.ID)
	}
}

// Merge registers e, reconciling it with an entity of the same spelling.
// A complete definition replaces a forward declaration or an auto-registered
// primitive in place. A name that only folds to a taken id gets a suffixed
// id of its own. It returns the entity that remains registered and whether e
// was dropped as a conflicting duplicate.
func (r *Registry) Merge(e *TypeEntity) (*TypeEntity, bool) {
	id, ok := r.Lookup(e.Name)
	if !ok {
		return r.AddUnique(e), false
	}
	e.ID = id
	existing := r.entities[id]
	switch {
	case e.Forward:
		if existing.Tag == "" && e.Tag != "" && existing.Forward {
			existing.Tag = e.Tag
			r.SetTag(TagKeyword(existing.Kind), e.Tag, existing.ID)
		}
		return existing, false
	case existing.Forward || existing.Kind == KindPrimitive:
		if e.Tag == "" {
			e.Tag = existing.Tag
		}
		r.entities[e.ID] = e
		if e.Tag != "" {
			r.SetTag(TagKeyword(e.Kind), e.Tag, e.ID)
		}
		return e, false
	}
	return existing, true
}

// Remove deletes an entity and every tag pointing at it.
func (r *Registry) Remove(id string) {
	if _, ok := r.entities[id]; !ok {
		return
	}
	delete(r.entities, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for k, v := range r.tags {
		if v == id {
			delete(r.tags, k)
		}
	}
	for k, v := range r.names {
		if v == id {
			delete(r.names, k)
		}
	}
}

// Rekey moves an entity to a new id, keeping its position. Tags follow.
func (r *Registry) Rekey(oldID, newID string) error {
	e, ok := r.entities[oldID]
	if !ok {
		return fmt.Errorf("unknown entity %s", oldID)
	}
	if _, taken := r.entities[newID]; taken {
		return fmt.Errorf("duplicate entity id %s", newID)
	}
	delete(r.entities, oldID)
	e.ID = newID
	r.entities[newID] = e
	for i, o := range r.order {
		if o == oldID {
			r.order[i] = newID
			break
		}
	}
	r.RetargetTags(oldID, newID)
	for k, v := range r.names {
		if v == oldID {
			r.names[k] = newID
		}
	}
	return nil
}

// RetargetTags points every tag naming from at to.
func (r *Registry) RetargetTags(from, to string) {
	for k, v := range r.tags {
		if v == from {
			r.tags[k] = to
		}
	}
}

// IDs returns entity ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// All returns entities in registration order.
func (r *Registry) All() []*TypeEntity {
	out := make([]*TypeEntity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entities[id])
	}
	return out
}

// TagKeyword maps an entity kind to the keyword of its tag namespace.
func TagKeyword(k EntityKind) string {
	switch k {
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	}
	return "struct"
}

func tagKey(keyword, tag string) string {
	if keyword == "class" {
		keyword = "struct"
	}
	return keyword + " " + tag
}

// SetTag binds a tag name to id unless the tag is already bound.
func (r *Registry) SetTag(keyword, tag, id string) {
	k := tagKey(keyword, tag)
	if _, ok := r.tags[k]; !ok {
		r.tags[k] = id
	}
}

// LookupTag resolves "struct foo" style references.
func (r *Registry) LookupTag(keyword, tag string) (string, bool) {
	id, ok := r.tags[tagKey(keyword, tag)]
	return id, ok
}

// UniqueName returns base, or base_2, base_3, ... for the first name that is
// neither spelled by an entity nor folds to a registered id.
func (r *Registry) UniqueName(base string) string {
	free := func(name string) bool {
		_, spelled := r.Lookup(name)
		return !spelled && !r.Has(CanonicalID(name))
	}
	if free(base) {
		return base
	}
	for n := 2; ; n++ {
		name := base + "_" + strconv.Itoa(n)
		if free(name) {
			return name
		}
	}
}

// UniqueID returns the canonical id of name, or that id with _2, _3, ...
// appended when it is already registered.
func (r *Registry) UniqueID(name string) string {
	base := CanonicalID(name)
	if !r.Has(base) {
		return base
	}
	for n := 2; ; n++ {
		id := base + "_" + strconv.Itoa(n)
		if !r.Has(id) {
			return id
		}
	}
}

type registryJSON struct {
	Entities map[string]*TypeEntity `json:"entities"`
	Order    []string               `json:"order"`
	Tags     map[string]string      `json:"tags,omitempty"`
}

// MarshalJSON emits the registry keyed by canonical id.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(registryJSON{Entities: r.entities, Order: r.order, Tags: r.tags})
}

// UnmarshalJSON restores a registry written by MarshalJSON.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw registryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.entities = raw.Entities
	if r.entities == nil {
		r.entities = make(map[string]*TypeEntity)
	}
	r.tags = raw.Tags
	if r.tags == nil {
		r.tags = make(map[string]string)
	}
	r.order = raw.Order
	if len(r.order) != len(r.entities) {
		r.order = r.order[:0]
		for id := range r.entities {
			r.order = append(r.order, id)
		}
		sort.Strings(r.order)
	}
	r.names = make(map[string]string, len(r.order))
	for _, id := range r.order {
		r.indexName(r.entities[id])
	}
	return nil
}
