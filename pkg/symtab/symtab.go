// Package symtab implements the symbol table (C3): a scoped mapping from
// identifier to value entity, with nested scopes identified by qualified
// names, plus flat global function and constant tables.
package symtab

import "github.com/anxi710/toy-compiler-sub000/pkg/symbols"

// GlobalScope is the name of the outermost scope.
const GlobalScope = "global"

// scope holds one nesting level's local name-to-value map.
type scope struct {
	qualName string
	values   map[string]*symbols.Value
}

// Table is the scoped symbol table. The zero value is not usable; use New.
type Table struct {
	scopes    []*scope
	functions map[string]*symbols.Function
	constants map[string]*symbols.Value
}

// New creates a Table with only the global scope entered.
func New() *Table {
	t := &Table{
		functions: make(map[string]*symbols.Function),
		constants: make(map[string]*symbols.Value),
	}
	t.scopes = []*scope{{qualName: GlobalScope, values: make(map[string]*symbols.Value)}}
	return t
}

// CurrentScope returns the fully qualified name of the innermost scope.
func (t *Table) CurrentScope() string {
	return t.scopes[len(t.scopes)-1].qualName
}

// Depth returns the number of scopes currently entered (including global).
func (t *Table) Depth() int { return len(t.scopes) }

// EnterScope appends "::name" to the current qualified name and pushes a
// fresh empty scope. With create == false it first looks for a scope of that
// qualified name among the scopes currently entered; exited scopes are not
// kept, so a scope entered and exited earlier is not found and a fresh empty
// scope is pushed instead.
func (t *Table) EnterScope(name string, create bool) {
	qual := t.CurrentScope() + "::" + name
	if !create {
		for _, s := range t.scopes {
			if s.qualName == qual {
				t.scopes = append(t.scopes, s)
				return
			}
		}
	}
	t.scopes = append(t.scopes, &scope{qualName: qual, values: make(map[string]*symbols.Value)})
}

// ExitScope pops one scope segment. Popping the global scope is an
// internal invariant violation (a compiler bug, not a user error); callers
// must ensure ExitScope calls are balanced with EnterScope calls
// (testable property 2).
func (t *Table) ExitScope() {
	if len(t.scopes) <= 1 {
		panic("symtab: exit scope with empty stack")
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// DeclareValue inserts name into the current scope, overwriting any prior
// binding: the language permits shadowing within a scope.
func (t *Table) DeclareValue(name string, v *symbols.Value) {
	t.scopes[len(t.scopes)-1].values[name] = v
}

// LookupValue walks outward from the current scope through each enclosing
// scope until the global scope is reached.
func (t *Table) LookupValue(name string) (*symbols.Value, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if v, ok := t.scopes[i].values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// ScopeLocals returns the name-to-value map of the innermost scope, used by
// the auto-type-inference check on scope exit.
func (t *Table) ScopeLocals() map[string]*symbols.Value {
	return t.scopes[len(t.scopes)-1].values
}

// DeclareFunction fails with ok == false if the name is already declared.
func (t *Table) DeclareFunction(name string, fn *symbols.Function) bool {
	if _, exists := t.functions[name]; exists {
		return false
	}
	t.functions[name] = fn
	return true
}

// LookupFunction is a flat, global lookup.
func (t *Table) LookupFunction(name string) (*symbols.Function, bool) {
	fn, ok := t.functions[name]
	return fn, ok
}

// DeclareConstant is idempotent on exact match: looking up the same literal
// yields the same shared entity.
func (t *Table) DeclareConstant(name string, v *symbols.Value) *symbols.Value {
	if existing, ok := t.constants[name]; ok {
		return existing
	}
	t.constants[name] = v
	return v
}

// LookupConstant is a flat, global lookup.
func (t *Table) LookupConstant(name string) (*symbols.Value, bool) {
	v, ok := t.constants[name]
	return v, ok
}
