package expr

import (
	"sort"
	"strings"
)

// Env is a case-insensitive variable environment.
// Each variable lives in a stable slot so hot loops can write through a pointer
// instead of hashing the name every time.
//
// A scope created with NewScope layers its own variables over a parent: reads
// fall through to the parent, and writes reach the parent only for variables
// the parent already holds. The zero value is an empty environment.
//
// An Env is not safe for concurrent use; the frame loop owns it.
type Env struct {
	vars   map[string]*float64
	parent *Env
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]*float64, 64)}
}

// NewScope creates an empty environment layered over parent.
func NewScope(parent *Env) *Env {
	return &Env{vars: make(map[string]*float64, 16), parent: parent}
}

// Parent returns the environment a scope is layered over, or nil.
func (e *Env) Parent() *Env {
	return e.parent
}

// Set assigns a variable, creating it if needed.
func (e *Env) Set(name string, v float64) {
	*e.slot(strings.ToLower(name)) = v
}

// Get returns a variable's value, or 0 when it has never been set.
func (e *Env) Get(name string) float64 {
	return e.get(strings.ToLower(name))
}

// Has reports whether the variable exists here or in a parent.
func (e *Env) Has(name string) bool {
	_, ok := e.lookup(strings.ToLower(name))
	return ok
}

// Slot returns the storage of a variable, creating it with value 0 if needed.
// The pointer stays valid until the variable is deleted.
func (e *Env) Slot(name string) *float64 {
	return e.slot(strings.ToLower(name))
}

// Delete removes a variable held by e itself. Parent variables are untouched.
func (e *Env) Delete(name string) {
	delete(e.vars, strings.ToLower(name))
}

// Len returns the number of variables held by e itself.
func (e *Env) Len() int {
	return len(e.vars)
}

// Names returns the names of the variables held by e itself in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the variables held by e itself into a plain map.
func (e *Env) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(e.vars))
	for name, p := range e.vars {
		out[name] = *p
	}
	return out
}

// Clone returns an independent copy of e's own variables over the same parent.
func (e *Env) Clone() *Env {
	c := &Env{vars: make(map[string]*float64, len(e.vars)), parent: e.parent}
	for name, p := range e.vars {
		v := *p
		c.vars[name] = &v
	}
	return c
}

// get expects an already lower-cased name.
func (e *Env) get(name string) float64 {
	if p, ok := e.lookup(name); ok {
		return *p
	}
	return 0
}

func (e *Env) lookup(name string) (*float64, bool) {
	for env := e; env != nil; env = env.parent {
		if p, ok := env.vars[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// slot expects an already lower-cased name.
func (e *Env) slot(name string) *float64 {
	if p, ok := e.lookup(name); ok {
		return p
	}
	if e.vars == nil {
		e.vars = make(map[string]*float64)
	}
	p := new(float64)
	e.vars[name] = p
	return p
}
