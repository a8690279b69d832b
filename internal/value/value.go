package value

import (
	"fmt"
	"strings"
)

type ValueType int

const (
	VAL_NIL ValueType = iota
	VAL_BOOL
	VAL_NUMBER
	VAL_STRING
	VAL_LIST
	VAL_FUNCTION
	VAL_CLOSURE
	VAL_NATIVE
	VAL_TYPE_CONSTRUCTOR
	VAL_ADT
	VAL_MODULE
)

// Value is an unboxed tagged union, in the teacher's style: a type tag plus
// scalar fields for the cheap cases and an Obj slot for anything heap-shaped.
type Value struct {
	Type     ValueType
	AsBool   bool
	AsNumber float64
	Obj      interface{}
}

// Function is a compiled callable. It carries a ChunkIndex into the VM's
// function-chunk table rather than embedding its chunk, so this package
// never needs to import the chunk package.
type Function struct {
	Name         string
	Arity        int
	ChunkIndex   int
	UpvalueCount int
}

// Upvalue models the Open(stack slot)/Closed(value) cell from the
// compiler's capture analysis. Location is non-nil while the cell still
// aliases a live stack slot; Close copies the value out and nils Location.
type Upvalue struct {
	Location *Value
	Closed   Value
}

func (u *Upvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

func (u *Upvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

func (u *Upvalue) Close() {
	if u.Location != nil {
		u.Closed = *u.Location
		u.Location = nil
	}
}

type Closure struct {
	Function *Function
	Upvalues []*Upvalue
}

type NativeFunction struct {
	Name  string
	Arity int // -1 means the native checks its own argument count
	Fn    func(args []Value) (Value, error)
}

type TypeConstructorDef struct {
	TypeName        string
	ConstructorName string
	Arity           int
}

type ADTInstance struct {
	TypeName        string
	ConstructorName string
	Fields          []Value
}

type List struct {
	Elements []Value
}

// Module is a loaded import, exposed as a value so member access ("alias.naam")
// goes through the normal OP_GET_MEMBER path instead of a separate kind of
// identifier resolution.
type Module struct {
	Path    string
	Exports map[string]Value
}

// Constructors

func NewNumber(v float64) Value { return Value{Type: VAL_NUMBER, AsNumber: v} }
func NewBool(v bool) Value      { return Value{Type: VAL_BOOL, AsBool: v} }
func NewNil() Value             { return Value{Type: VAL_NIL} }
func NewString(v string) Value  { return Value{Type: VAL_STRING, Obj: v} }

func NewList(elements []Value) Value {
	return Value{Type: VAL_LIST, Obj: &List{Elements: elements}}
}

func NewFunction(fn *Function) Value {
	return Value{Type: VAL_FUNCTION, Obj: fn}
}

func NewClosure(c *Closure) Value {
	return Value{Type: VAL_CLOSURE, Obj: c}
}

func NewNative(nf *NativeFunction) Value {
	return Value{Type: VAL_NATIVE, Obj: nf}
}

func NewTypeConstructor(tc *TypeConstructorDef) Value {
	return Value{Type: VAL_TYPE_CONSTRUCTOR, Obj: tc}
}

func NewADT(a *ADTInstance) Value {
	return Value{Type: VAL_ADT, Obj: a}
}

func NewModule(m *Module) Value {
	return Value{Type: VAL_MODULE, Obj: m}
}

func (v Value) IsTruthy() bool {
	switch v.Type {
	case VAL_NIL:
		return false
	case VAL_BOOL:
		return v.AsBool
	default:
		return true
	}
}

func (v Value) AsString() string {
	return v.Obj.(string)
}

func (v Value) AsList() *List {
	return v.Obj.(*List)
}

func (v Value) String() string {
	switch v.Type {
	case VAL_NIL:
		return "nil"
	case VAL_BOOL:
		if v.AsBool {
			return "waar"
		}
		return "vals"
	case VAL_NUMBER:
		return formatNumber(v.AsNumber)
	case VAL_STRING:
		return v.Obj.(string)
	case VAL_LIST:
		l := v.Obj.(*List)
		parts := make([]string, len(l.Elements))
		for i, e := range l.Elements {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case VAL_FUNCTION:
		return fmt.Sprintf("<funksie %s>", v.Obj.(*Function).Name)
	case VAL_CLOSURE:
		return fmt.Sprintf("<funksie %s>", v.Obj.(*Closure).Function.Name)
	case VAL_NATIVE:
		return fmt.Sprintf("<inheemse funksie %s>", v.Obj.(*NativeFunction).Name)
	case VAL_TYPE_CONSTRUCTOR:
		tc := v.Obj.(*TypeConstructorDef)
		return fmt.Sprintf("<konstruktor %s>", tc.ConstructorName)
	case VAL_ADT:
		a := v.Obj.(*ADTInstance)
		if len(a.Fields) == 0 {
			return a.ConstructorName
		}
		parts := make([]string, len(a.Fields))
		for i, f := range a.Fields {
			parts[i] = f.String()
		}
		return a.ConstructorName + "(" + strings.Join(parts, ", ") + ")"
	case VAL_MODULE:
		return fmt.Sprintf("<module %s>", v.Obj.(*Module).Path)
	default:
		return "?"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// Equal is structural for Number/Boolean/String/Nil/List/ADT (recursing
// field by field, requiring matching type name, constructor name and field
// count first) and pointer-identity for every callable kind: two closures
// are equal only when they are literally the same allocation.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case VAL_NIL:
		return true
	case VAL_BOOL:
		return a.AsBool == b.AsBool
	case VAL_NUMBER:
		return a.AsNumber == b.AsNumber
	case VAL_STRING:
		return a.Obj.(string) == b.Obj.(string)
	case VAL_LIST:
		la, lb := a.Obj.(*List), b.Obj.(*List)
		if len(la.Elements) != len(lb.Elements) {
			return false
		}
		for i := range la.Elements {
			if !Equal(la.Elements[i], lb.Elements[i]) {
				return false
			}
		}
		return true
	case VAL_FUNCTION:
		return a.Obj.(*Function) == b.Obj.(*Function)
	case VAL_CLOSURE:
		return a.Obj.(*Closure) == b.Obj.(*Closure)
	case VAL_NATIVE:
		return a.Obj.(*NativeFunction) == b.Obj.(*NativeFunction)
	case VAL_TYPE_CONSTRUCTOR:
		return a.Obj.(*TypeConstructorDef) == b.Obj.(*TypeConstructorDef)
	case VAL_ADT:
		xa, xb := a.Obj.(*ADTInstance), b.Obj.(*ADTInstance)
		if xa.TypeName != xb.TypeName || xa.ConstructorName != xb.ConstructorName || len(xa.Fields) != len(xb.Fields) {
			return false
		}
		for i := range xa.Fields {
			if !Equal(xa.Fields[i], xb.Fields[i]) {
				return false
			}
		}
		return true
	case VAL_MODULE:
		return a.Obj.(*Module) == b.Obj.(*Module)
	default:
		return false
	}
}
