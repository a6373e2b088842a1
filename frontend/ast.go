// Package frontend defines the minimal typed AST that C1 consumes and
// the lowering pass that turns it into ssair (spec.md §4.1, §6.1). Name
// resolution and type checking are assumed to have already run: every
// node here already carries resolved types and addresses.
package frontend

import "github.com/blendsdk/blend65/ssair"

// File is one compiled source file's top-level declarations, already
// merged with its imports (spec.md §6.1 treats import resolution as
// out of scope; the frontend only ever sees the flattened result).
type File struct {
	Globals []*VarDecl
	Maps    []*MapDecl
	Funcs   []*FuncDecl
}

// VarDecl is a module-level RAM or data-section variable.
type VarDecl struct {
	Name  string
	Type  ssair.Type
	Init  []byte
	Class ssair.StorageClass
	Pos   ssair.Pos
}

// MapDecl mirrors ssair.MapDecl at the AST level; the frontend copies
// it over unchanged since address resolution already happened upstream
// of this package.
type MapDecl = ssair.MapDecl

// Param is one function parameter.
type Param struct {
	Name string
	Type ssair.Type
}

// FuncDecl is one function declaration.
type FuncDecl struct {
	Name       string
	Params     []Param
	ReturnType ssair.Type // ssair.KindInvalid Kind means void.
	Recursive  bool
	IsISREntry bool
	Body       []Stmt
	Pos        ssair.Pos
}

// Stmt is any statement node.
type Stmt interface{ stmt() }

type (
	// LocalDecl declares and initializes a function-local variable.
	// Directive carries an explicit `@zp` placement request from source
	// (spec.md §4.4); ssair.ZPNone if the declaration named none.
	LocalDecl struct {
		Name      string
		Type      ssair.Type
		Init      Expr
		Directive ssair.ZPDirective
		Pos       ssair.Pos
	}

	// Assign stores a value into an existing lvalue.
	Assign struct {
		Target Expr // Ident, MapFieldAccess, MapRangeAccess, or Deref.
		Value  Expr
		Pos    ssair.Pos
	}

	// ExprStmt evaluates an expression for its side effects only (a
	// bare call, or poke()).
	ExprStmt struct {
		X   Expr
		Pos ssair.Pos
	}

	// If is a conditional with an optional else branch.
	If struct {
		Cond Expr
		Then []Stmt
		Else []Stmt
		Pos  ssair.Pos
	}

	// While loops while Cond holds.
	While struct {
		Cond Expr
		Body []Stmt
		Pos  ssair.Pos
	}

	// For is a counted loop: `for Init; Cond; Post { Body }`.
	For struct {
		Init Stmt
		Cond Expr
		Post Stmt
		Body []Stmt
		Pos  ssair.Pos
	}

	// Break exits the nearest enclosing loop.
	Break struct{ Pos ssair.Pos }

	// Continue jumps to the nearest enclosing loop's post/condition
	// check.
	Continue struct{ Pos ssair.Pos }

	// Return exits the function, optionally with a value.
	Return struct {
		Value Expr // nil for void returns.
		Pos   ssair.Pos
	}
)

func (*LocalDecl) stmt() {}
func (*Assign) stmt()    {}
func (*ExprStmt) stmt()  {}
func (*If) stmt()        {}
func (*While) stmt()     {}
func (*For) stmt()       {}
func (*Break) stmt()     {}
func (*Continue) stmt()  {}
func (*Return) stmt()    {}

// Expr is any expression node.
type Expr interface {
	expr()
	Type() ssair.Type
}

type (
	// IntLiteral is an integer constant, already typed to u8 or u16 by
	// the checker.
	IntLiteral struct {
		Value uint16
		Typ   ssair.Type
		Pos   ssair.Pos
	}

	// BoolLiteral is a true/false constant.
	BoolLiteral struct {
		Value bool
		Pos   ssair.Pos
	}

	// Ident references a local variable, parameter, or module-level
	// global by name.
	Ident struct {
		Name string
		Typ  ssair.Type
		Pos  ssair.Pos
	}

	// Binary is a binary operator application. Op is one of the
	// ssair arithmetic/bitwise/comparison/logical opcodes.
	Binary struct {
		Op          ssair.Opcode
		Left, Right Expr
		Typ         ssair.Type
		Pos         ssair.Pos
	}

	// Unary is a unary operator application (neg, not, bool_to_byte
	// cast and friends arrive here as Op).
	Unary struct {
		Op  ssair.Opcode
		X   Expr
		Typ ssair.Type
		Pos ssair.Pos
	}

	// Call invokes a statically resolved function by name.
	Call struct {
		Callee string
		Args   []Expr
		Typ    ssair.Type
		Pos    ssair.Pos
	}

	// CallIndirect invokes a function through a function-pointer
	// value.
	CallIndirect struct {
		Target Expr
		Args   []Expr
		Typ    ssair.Type
		Pos    ssair.Pos
	}

	// MapFieldAccess reads a simple @map or one field of a struct
	// @map.
	MapFieldAccess struct {
		Map   string
		Field string // empty for a MapSimple declaration.
		Typ   ssair.Type
		Pos   ssair.Pos
	}

	// MapRangeAccess indexes a MapRange @map declaration, by either a
	// compile-time constant or a runtime-computed index.
	MapRangeAccess struct {
		Map   string
		Index Expr
		Typ   ssair.Type
		Pos   ssair.Pos
	}

	// AddrOf takes the address of a variable or function (spec.md
	// §3.5's `addr_of`), used to form function-pointer values for
	// call_indirect.
	AddrOf struct {
		Name string
		Typ  ssair.Type
		Pos  ssair.Pos
	}

	// Len returns the element count of an array-typed local/global.
	Len struct {
		Name string
		Pos  ssair.Pos
	}

	// Peek/Poke are the raw-memory-address intrinsics (spec.md §3.5).
	Peek struct {
		Addr Expr
		Typ  ssair.Type
		Pos  ssair.Pos
	}
	Poke struct {
		Addr  Expr
		Value Expr
		Pos   ssair.Pos
	}
)

func (*IntLiteral) expr()     {}
func (*BoolLiteral) expr()    {}
func (*Ident) expr()          {}
func (*Binary) expr()         {}
func (*Unary) expr()          {}
func (*Call) expr()           {}
func (*CallIndirect) expr()   {}
func (*MapFieldAccess) expr() {}
func (*MapRangeAccess) expr() {}
func (*AddrOf) expr()         {}
func (*Len) expr()            {}
func (*Peek) expr()           {}
func (*Poke) expr()           {}

func (n *IntLiteral) Type() ssair.Type     { return n.Typ }
func (n *BoolLiteral) Type() ssair.Type    { return ssair.I1 }
func (n *Ident) Type() ssair.Type          { return n.Typ }
func (n *Binary) Type() ssair.Type         { return n.Typ }
func (n *Unary) Type() ssair.Type          { return n.Typ }
func (n *Call) Type() ssair.Type           { return n.Typ }
func (n *CallIndirect) Type() ssair.Type   { return n.Typ }
func (n *MapFieldAccess) Type() ssair.Type { return n.Typ }
func (n *MapRangeAccess) Type() ssair.Type { return n.Typ }
func (n *AddrOf) Type() ssair.Type         { return n.Typ }
func (n *Len) Type() ssair.Type            { return ssair.U8 }
func (n *Peek) Type() ssair.Type           { return n.Typ }
func (n *Poke) Type() ssair.Type           { return ssair.Type{} }
