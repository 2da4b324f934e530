package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Tree is a JSON document held as generic maps; it is not safe for concurrent use
type Tree struct {
	root any
}

// NewTree wraps an already normalized root
func NewTree(root any) *Tree {
	return &Tree{root: root}
}

// Root returns the live root value
func (t *Tree) Root() any {
	return t.root
}

// Get returns a copy of the value at path, or nil
func (t *Tree) Get(path string) any {
	v, _ := lookup(t.root, SplitPath(path))
	return deepCopy(v)
}

// Set replaces the value at path
func (t *Tree) Set(path string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	t.root = assign(t.root, SplitPath(path), norm)
	return nil
}

// Update merges fields under path in key order
func (t *Tree) Update(path string, fields map[string]any) error {
	base := SplitPath(path)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// normalize everything first so a bad value leaves the tree untouched
	values := make([]any, len(keys))
	for i, k := range keys {
		norm, err := Normalize(fields[k])
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		values[i] = norm
	}
	for i, k := range keys {
		segs := append(append([]string{}, base...), SplitPath(k)...)
		t.root = assign(t.root, segs, values[i])
	}
	return nil
}

// Check evaluates conditions relative to path
func (t *Tree) Check(path string, conds []Condition) (bool, error) {
	base := SplitPath(path)
	for _, c := range conds {
		segs := append(append([]string{}, base...), SplitPath(c.Path)...)
		current, _ := lookup(t.root, segs)
		switch {
		case c.Absent:
			if current != nil {
				return false, nil
			}
		case len(c.OneOf) > 0:
			matched := false
			for _, candidate := range c.OneOf {
				want, err := Normalize(candidate)
				if err != nil {
					return false, err
				}
				if reflect.DeepEqual(current, want) {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		default:
			want, err := Normalize(c.Equals)
			if err != nil {
				return false, err
			}
			if !reflect.DeepEqual(current, want) {
				return false, nil
			}
		}
	}
	return true, nil
}

// Apply runs a queued op against the tree
func (t *Tree) Apply(op Op) error {
	if len(op.Conds) > 0 {
		ok, err := t.Check(op.Path, op.Conds)
		if err != nil || !ok {
			return err
		}
	}
	switch op.Kind {
	case OpSet:
		return t.Set(op.Path, op.Value)
	case OpUpdate:
		return t.Update(op.Path, op.Fields)
	case OpRemove:
		return t.Set(op.Path, nil)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

// SplitPath breaks a slash path into segments
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinPath joins segments into a slash path
func JoinPath(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

// Normalize converts v to its generic JSON form with empty objects removed
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return prune(out), nil
}

func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if pc := prune(child); pc == nil {
				delete(t, k)
			} else {
				t[k] = pc
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		if len(t) == 0 {
			return nil
		}
		for i, child := range t {
			t[i] = prune(child)
		}
		return t
	default:
		return v
	}
}

func lookup(root any, segs []string) (any, bool) {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[s]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// assign writes v at segs and returns the new root; deleting never creates parents
func assign(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, _ := root.(map[string]any)
	if v == nil {
		if m == nil {
			return root
		}
		child, ok := m[segs[0]]
		if !ok {
			return root
		}
		if nc := assign(child, segs[1:], nil); nc == nil {
			delete(m, segs[0])
		} else {
			m[segs[0]] = nc
		}
		if len(m) == 0 {
			return nil
		}
		return m
	}
	if m == nil {
		m = make(map[string]any)
	}
	m[segs[0]] = assign(m[segs[0]], segs[1:], v)
	return m
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}
