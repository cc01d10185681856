package city

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateObjectName is returned by Add when the name is already stored
var ErrDuplicateObjectName = errors.New("duplicate city object name")

// Collection stores city objects by name and remembers insertion order
type Collection struct {
	objects map[string]*CityObject
	order   []string
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{objects: make(map[string]*CityObject)}
}

// Add stores obj. Callers check Contains first; a duplicate name is an error.
func (c *Collection) Add(obj *CityObject) error {
	if _, ok := c.objects[obj.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateObjectName, obj.Name)
	}
	c.objects[obj.Name] = obj
	c.order = append(c.order, obj.Name)
	return nil
}

// Contains reports whether an object with this name is stored
func (c *Collection) Contains(name string) bool {
	_, ok := c.objects[name]
	return ok
}

// Get looks up an object by name
func (c *Collection) Get(name string) (*CityObject, bool) {
	obj, ok := c.objects[name]
	return obj, ok
}

// Len returns the number of stored objects, filtered-out ones included
func (c *Collection) Len() int { return len(c.order) }

// Names returns object names in insertion order
func (c *Collection) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns every object in insertion order
func (c *Collection) All() []*CityObject {
	out := make([]*CityObject, len(c.order))
	for i, name := range c.order {
		out[i] = c.objects[name]
	}
	return out
}

// Flatten returns the objects that were not filtered out, in insertion order
func (c *Collection) Flatten() []*CityObject {
	out := make([]*CityObject, 0, len(c.order))
	for _, name := range c.order {
		if obj := c.objects[name]; !obj.IsFilteredOut {
			out = append(out, obj)
		}
	}
	return out
}

// InheritedAttributes collects the direct attributes of obj's parents that
// obj does not define itself. Only one level is followed and the first
// parent listed wins on conflicting keys. A parent missing from the
// collection is an error.
func (c *Collection) InheritedAttributes(obj *CityObject) (map[string]any, error) {
	out := make(map[string]any)
	for _, name := range obj.Parents {
		parent, ok := c.objects[name]
		if !ok {
			return nil, fmt.Errorf("object %s: parent %s not found", obj.Name, name)
		}
		for k, v := range parent.Attributes {
			if _, local := obj.Attributes[k]; local {
				continue
			}
			if _, seen := out[k]; seen {
				continue
			}
			out[k] = v
		}
	}
	return out, nil
}

// LinkChildren adds each object to the children list of parents that do not
// already list it. It returns the number of links added.
func (c *Collection) LinkChildren() int {
	added := 0
	for _, name := range c.order {
		obj := c.objects[name]
		for _, p := range obj.Parents {
			parent, ok := c.objects[p]
			if !ok || slices.Contains(parent.Children, obj.Name) {
				continue
			}
			parent.Children = append(parent.Children, obj.Name)
			added++
		}
	}
	return added
}
