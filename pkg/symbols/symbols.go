// Package symbols implements the symbol model (C2): entities for values
// (locals, temporaries, constants) and functions, with identity, type,
// mutability, initialization, and declaration position.
package symbols

import "github.com/anxi710/toy-compiler-sub000/pkg/types"

// Position mirrors ast.Position without importing the ast package, which
// would create an import cycle (ast embeds *Value via Attrs).
type Position struct {
	Line int
	Col  int
}

// Kind discriminates the three value shapes the spec names.
type Kind int

const (
	Local Kind = iota
	Temporary
	Constant
)

// Value is a named entity with a type, declaration position, a mutable
// flag, an initialized flag, and a discriminator.
type Value struct {
	Name        string
	Type        types.Type
	Pos         Position
	Mutable     bool
	Initialized bool
	Kind        Kind
	Formal      bool // only meaningful for Kind == Local: is it a parameter
}

// NewLocal creates a user-declared variable.
func NewLocal(name string, t types.Type, pos Position, mutable, formal bool) *Value {
	return &Value{Name: name, Type: t, Pos: pos, Mutable: mutable, Kind: Local, Formal: formal}
}

// NewTemporary creates a compiler-introduced temporary: always immutable,
// always already initialized.
func NewTemporary(name string, t types.Type, pos Position) *Value {
	return &Value{Name: name, Type: t, Pos: pos, Mutable: false, Initialized: true, Kind: Temporary}
}

// NewConstant creates a literal constant. Name is its textual form ("1", "true").
func NewConstant(name string, t types.Type, pos Position) *Value {
	return &Value{Name: name, Type: t, Pos: pos, Mutable: false, Initialized: true, Kind: Constant}
}

// Function is a declared function: name, declaration position, ordered
// formal parameters, and return type.
type Function struct {
	Name   string
	Pos    Position
	Params []*Value
	Return types.Type
}
