package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"vonktaal/internal/chunk"
	"vonktaal/internal/value"
)

const StackMax = 2048
const FramesMax = 256

// ModuleLoader resolves an import path (plus the alias it was imported
// under) to a module value. It is injected rather than imported directly
// so this package never needs to know how module files are found, lexed,
// parsed and compiled. It receives the importing VM because any exported
// function or closure has to be remapped into that VM's own function-chunk
// table before it can be called.
type ModuleLoader func(importer *VM, path, alias string) (value.Value, error)

// Store backs the 'stoor'/'laai' natives. It is injected so this package
// never needs to import a database driver directly.
type Store interface {
	Set(key string, v value.Value) error
	Get(key string) (value.Value, bool, error)
}

// CallFrame is one activation record: which chunk is executing, where its
// instruction pointer sits, and where its locals begin on the shared
// value stack.
type CallFrame struct {
	Closure    *value.Closure // nil for a bare (non-capturing) function
	Function   *value.Function
	Chunk      *chunk.Chunk
	IP         int
	SlotsStart int
}

// openUpvalue pairs a still-open upvalue cell with the stack slot it
// currently aliases, so closeUpvalues can find and close everything at or
// above a given slot without the value package needing to know about
// stack indices at all.
type openUpvalue struct {
	slot int
	uv   *value.Upvalue
}

// VM is a stack-based bytecode interpreter. The value stack is a fixed
// array rather than a slice so that &vm.stack[i], captured as an open
// upvalue's Location, stays valid for the lifetime of the call that owns
// slot i: a growing slice would reallocate and invalidate it.
type VM struct {
	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]*CallFrame
	frameCount int

	Functions []*chunk.Chunk
	Globals   map[string]value.Value

	openUpvalues []*openUpvalue

	ModuleLoader ModuleLoader
	Store        Store

	Out io.Writer
}

func New() *VM {
	vm := &VM{
		Globals: make(map[string]value.Value),
		Out:     os.Stdout,
	}
	registerNatives(vm)
	registerPluginNatives(vm)
	return vm
}

// Run executes a compiled program: mainChunk is the top-level script
// chunk, functions the flat table every Function.ChunkIndex refers into.
func (vm *VM) Run(mainChunk *chunk.Chunk, functions []*chunk.Chunk) (value.Value, error) {
	vm.Functions = functions
	frame := &CallFrame{Chunk: mainChunk, SlotsStart: 0}
	vm.frames[0] = frame
	vm.frameCount = 1
	return vm.run(0)
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) currentFrame() *CallFrame {
	return vm.frames[vm.frameCount-1]
}

func (vm *VM) runtimeError(frame *CallFrame, line int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("[%s:%d] %s", frame.Chunk.FileName, line, msg)
}

// run drives the fetch-decode-execute loop for the current top frame
// until the frame stack unwinds back down to targetDepth, then returns
// the value that frame returned. Run(...) calls this with targetDepth 0
// (run to completion); callValue calls it with targetDepth set to the
// depth just before it pushed a new frame, so a native calling back into
// Vonktaal code (a higher-order function like 'kaart') gets a value back
// synchronously.
func (vm *VM) run(targetDepth int) (value.Value, error) {
	frame := vm.currentFrame()

	readByte := func() byte {
		b := frame.Chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readShort := func() int {
		hi := frame.Chunk.Code[frame.IP]
		lo := frame.Chunk.Code[frame.IP+1]
		frame.IP += 2
		return int(hi)<<8 | int(lo)
	}

	for {
		op := chunk.OpCode(frame.Chunk.Code[frame.IP])
		line := frame.Chunk.Lines[frame.IP]
		frame.IP++

		switch op {
		case chunk.OP_CONSTANT:
			idx := readByte()
			vm.push(frame.Chunk.Constants[idx])

		case chunk.OP_CONSTANT_LONG:
			idx := readShort()
			vm.push(frame.Chunk.Constants[idx])

		case chunk.OP_POP:
			vm.pop()

		case chunk.OP_DUP:
			vm.push(vm.peek(0))

		case chunk.OP_GET_LOCAL:
			slot := readByte()
			vm.push(vm.stack[frame.SlotsStart+int(slot)])

		case chunk.OP_SET_LOCAL:
			slot := readByte()
			vm.stack[frame.SlotsStart+int(slot)] = vm.peek(0)

		case chunk.OP_GET_GLOBAL:
			idx := readByte()
			name := frame.Chunk.Constants[idx].AsString()
			v, ok := vm.Globals[name]
			if !ok {
				return value.Value{}, vm.runtimeError(frame, line, "ongedefinieerde veranderlike: '%s'", name)
			}
			vm.push(v)

		case chunk.OP_DEFINE_GLOBAL:
			idx := readByte()
			name := frame.Chunk.Constants[idx].AsString()
			vm.Globals[name] = vm.pop()

		case chunk.OP_GET_UPVALUE:
			slot := readByte()
			vm.push(frame.Closure.Upvalues[slot].Get())

		case chunk.OP_SET_UPVALUE:
			slot := readByte()
			frame.Closure.Upvalues[slot].Set(vm.peek(0))

		case chunk.OP_CLOSURE:
			constIdx := readByte()
			upCount := int(readByte())
			fn := frame.Chunk.Constants[constIdx].Obj.(*value.Function)
			upvalues := make([]*value.Upvalue, upCount)
			for i := 0; i < upCount; i++ {
				isLocal := readByte() != 0
				index := int(readByte())
				if isLocal {
					upvalues[i] = vm.captureUpvalue(frame.SlotsStart + index)
				} else {
					upvalues[i] = frame.Closure.Upvalues[index]
				}
			}
			vm.push(value.NewClosure(&value.Closure{Function: fn, Upvalues: upvalues}))

		case chunk.OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OP_ADD:
			if err := vm.binaryAdd(); err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
		case chunk.OP_SUBTRACT:
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a - b }); err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
		case chunk.OP_MULTIPLY:
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a * b }); err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
		case chunk.OP_DIVIDE:
			b := vm.peek(0)
			if b.Type == value.VAL_NUMBER && b.AsNumber == 0 {
				return value.Value{}, vm.runtimeError(frame, line, "kan nie deur nul deel nie")
			}
			if err := vm.binaryNumeric(func(a, b float64) float64 { return a / b }); err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
		case chunk.OP_MODULO:
			b := vm.peek(0)
			if b.Type == value.VAL_NUMBER && b.AsNumber == 0 {
				return value.Value{}, vm.runtimeError(frame, line, "kan nie deur nul deel nie")
			}
			if err := vm.binaryNumeric(func(a, b float64) float64 { return math.Mod(a, b) }); err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}

		case chunk.OP_NEGATE:
			a := vm.pop()
			if a.Type != value.VAL_NUMBER {
				return value.Value{}, vm.runtimeError(frame, line, "operand moet 'n getal wees")
			}
			vm.push(value.NewNumber(-a.AsNumber))

		case chunk.OP_NOT:
			a := vm.pop()
			vm.push(value.NewBool(!a.IsTruthy()))

		case chunk.OP_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(value.NewBool(value.Equal(a, b)))
		case chunk.OP_NOT_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(value.NewBool(!value.Equal(a, b)))

		case chunk.OP_LESS, chunk.OP_LESS_EQUAL, chunk.OP_GREATER, chunk.OP_GREATER_EQUAL:
			b, a := vm.pop(), vm.pop()
			if a.Type != value.VAL_NUMBER || b.Type != value.VAL_NUMBER {
				return value.Value{}, vm.runtimeError(frame, line, "vergelyking vereis getalle")
			}
			var result bool
			switch op {
			case chunk.OP_LESS:
				result = a.AsNumber < b.AsNumber
			case chunk.OP_LESS_EQUAL:
				result = a.AsNumber <= b.AsNumber
			case chunk.OP_GREATER:
				result = a.AsNumber > b.AsNumber
			case chunk.OP_GREATER_EQUAL:
				result = a.AsNumber >= b.AsNumber
			}
			vm.push(value.NewBool(result))

		case chunk.OP_PRINT:
			v := vm.pop()
			fmt.Fprintln(vm.Out, v.String())

		case chunk.OP_JUMP:
			offset := readShort()
			frame.IP += offset

		case chunk.OP_JUMP_IF_FALSE:
			offset := readShort()
			if !vm.peek(0).IsTruthy() {
				frame.IP += offset
			}

		case chunk.OP_LOOP:
			offset := readShort()
			frame.IP -= offset

		case chunk.OP_MAKE_LIST:
			count := readShort()
			elems := make([]value.Value, count)
			copy(elems, vm.stack[vm.stackTop-count:vm.stackTop])
			vm.stackTop -= count
			vm.push(value.NewList(elems))

		case chunk.OP_GET_INDEX:
			idxVal := vm.pop()
			collVal := vm.pop()
			result, err := getIndex(collVal, idxVal)
			if err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
			vm.push(result)

		case chunk.OP_CALL:
			argCount := int(readByte())
			callee := vm.peek(argCount)
			args := make([]value.Value, argCount)
			copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])
			result, err := vm.callValue(callee, args)
			if err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
			vm.stackTop -= argCount + 1
			vm.push(result)

		case chunk.OP_TAIL_CALL:
			argCount := int(readByte())
			callee := vm.peek(argCount)
			args := make([]value.Value, argCount)
			copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])

			switch callee.Type {
			case value.VAL_FUNCTION, value.VAL_CLOSURE:
				var fn *value.Function
				var closure *value.Closure
				if callee.Type == value.VAL_CLOSURE {
					closure = callee.Obj.(*value.Closure)
					fn = closure.Function
				} else {
					fn = callee.Obj.(*value.Function)
				}
				if len(args) != fn.Arity {
					return value.Value{}, vm.runtimeError(frame, line, "verwag %d argument(e) maar het %d ontvang", fn.Arity, len(args))
				}

				vm.closeUpvalues(frame.SlotsStart)
				vm.stack[frame.SlotsStart] = callee
				copy(vm.stack[frame.SlotsStart+1:], args)
				vm.stackTop = frame.SlotsStart + 1 + len(args)

				frame.Function = fn
				frame.Closure = closure
				frame.Chunk = vm.Functions[fn.ChunkIndex]
				frame.IP = 0
				// The frame is reused in place: no new CallFrame, no
				// growth of vm.frames. This is what makes tail
				// recursion run in constant stack space.

			default:
				result, err := vm.callValue(callee, args)
				if err != nil {
					return value.Value{}, vm.runtimeError(frame, line, "%s", err)
				}
				vm.closeUpvalues(frame.SlotsStart)
				vm.stackTop = frame.SlotsStart
				vm.frameCount--
				if vm.frameCount == targetDepth {
					return result, nil
				}
				frame = vm.currentFrame()
				vm.push(result)
			}

		case chunk.OP_RETURN:
			result := vm.pop()
			vm.closeUpvalues(frame.SlotsStart)
			vm.stackTop = frame.SlotsStart
			vm.frameCount--
			if vm.frameCount == targetDepth {
				return result, nil
			}
			frame = vm.currentFrame()
			vm.push(result)

		case chunk.OP_CHECK_CONSTRUCTOR:
			nameIdx := readByte()
			arity := readByte()
			name := frame.Chunk.Constants[nameIdx].AsString()
			v := vm.peek(0)
			matches := false
			switch v.Type {
			case value.VAL_ADT:
				adt := v.Obj.(*value.ADTInstance)
				matches = adt.ConstructorName == name && len(adt.Fields) == int(arity)
			case value.VAL_TYPE_CONSTRUCTOR:
				tc := v.Obj.(*value.TypeConstructorDef)
				matches = tc.ConstructorName == name && tc.Arity == 0 && arity == 0
			}
			vm.push(value.NewBool(matches))

		case chunk.OP_GET_FIELD:
			idx := readByte()
			v := vm.peek(0)
			adt, ok := v.Obj.(*value.ADTInstance)
			if !ok {
				return value.Value{}, vm.runtimeError(frame, line, "kan nie 'n veld kry van 'n nie-konstruktor-waarde nie")
			}
			vm.push(adt.Fields[idx])

		case chunk.OP_GET_FIELD_POP:
			idx := readByte()
			v := vm.pop()
			adt, ok := v.Obj.(*value.ADTInstance)
			if !ok {
				return value.Value{}, vm.runtimeError(frame, line, "kan nie 'n veld kry van 'n nie-konstruktor-waarde nie")
			}
			vm.push(adt.Fields[idx])

		case chunk.OP_LOAD_MODULE:
			pathIdx := readByte()
			aliasIdx := readByte()
			path := frame.Chunk.Constants[pathIdx].AsString()
			alias := frame.Chunk.Constants[aliasIdx].AsString()
			if vm.ModuleLoader == nil {
				return value.Value{}, vm.runtimeError(frame, line, "module-laai is nie beskikbaar nie")
			}
			modVal, err := vm.ModuleLoader(vm, path, alias)
			if err != nil {
				return value.Value{}, vm.runtimeError(frame, line, "%s", err)
			}
			vm.push(modVal)

		case chunk.OP_GET_MEMBER:
			idx := readByte()
			name := frame.Chunk.Constants[idx].AsString()
			obj := vm.pop()
			mod, ok := obj.Obj.(*value.Module)
			if !ok || obj.Type != value.VAL_MODULE {
				return value.Value{}, vm.runtimeError(frame, line, "kan nie lid '%s' kry van hierdie tipe nie", name)
			}
			v, ok := mod.Exports[name]
			if !ok {
				return value.Value{}, vm.runtimeError(frame, line, "module het nie lid '%s' nie", name)
			}
			vm.push(v)

		case chunk.OP_MATCH_FAIL:
			return value.Value{}, vm.runtimeError(frame, line, "geen arm pas nie")

		default:
			return value.Value{}, vm.runtimeError(frame, line, "onbekende opkode %d", op)
		}
	}
}

// callValue is the re-entrant calling convention used by OP_CALL and by
// any native that needs to invoke a Vonktaal value itself (the
// higher-order list functions). For Function/Closure callees it pushes a
// new frame and recurses into run() until that frame (and whatever it in
// turn calls) unwinds back to the depth it started at.
func (vm *VM) callValue(callee value.Value, args []value.Value) (value.Value, error) {
	switch callee.Type {
	case value.VAL_FUNCTION, value.VAL_CLOSURE:
		var fn *value.Function
		var closure *value.Closure
		if callee.Type == value.VAL_CLOSURE {
			closure = callee.Obj.(*value.Closure)
			fn = closure.Function
		} else {
			fn = callee.Obj.(*value.Function)
		}
		if len(args) != fn.Arity {
			return value.Value{}, fmt.Errorf("verwag %d argument(e) maar het %d ontvang", fn.Arity, len(args))
		}
		if vm.frameCount == FramesMax {
			return value.Value{}, fmt.Errorf("stapel oorloop")
		}

		slotsStart := vm.stackTop
		vm.push(callee)
		for _, a := range args {
			vm.push(a)
		}

		targetDepth := vm.frameCount
		vm.frames[vm.frameCount] = &CallFrame{
			Function:   fn,
			Closure:    closure,
			Chunk:      vm.Functions[fn.ChunkIndex],
			SlotsStart: slotsStart,
		}
		vm.frameCount++

		return vm.run(targetDepth)

	case value.VAL_NATIVE:
		nf := callee.Obj.(*value.NativeFunction)
		if nf.Arity >= 0 && len(args) != nf.Arity {
			return value.Value{}, fmt.Errorf("'%s' verwag %d argument(e) maar het %d ontvang", nf.Name, nf.Arity, len(args))
		}
		return nf.Fn(args)

	case value.VAL_TYPE_CONSTRUCTOR:
		tc := callee.Obj.(*value.TypeConstructorDef)
		if len(args) != tc.Arity {
			return value.Value{}, fmt.Errorf("konstruktor '%s' verwag %d argument(e) maar het %d ontvang", tc.ConstructorName, tc.Arity, len(args))
		}
		fields := make([]value.Value, len(args))
		copy(fields, args)
		return value.NewADT(&value.ADTInstance{TypeName: tc.TypeName, ConstructorName: tc.ConstructorName, Fields: fields}), nil

	default:
		return value.Value{}, fmt.Errorf("kan slegs funksies en konstruktore oproep")
	}
}

func (vm *VM) captureUpvalue(slot int) *value.Upvalue {
	for _, o := range vm.openUpvalues {
		if o.slot == slot {
			return o.uv
		}
	}
	created := &value.Upvalue{Location: &vm.stack[slot]}
	vm.openUpvalues = append(vm.openUpvalues, &openUpvalue{slot: slot, uv: created})
	return created
}

// closeUpvalues closes every still-open upvalue aliasing slot fromSlot or
// higher (the part of the stack a returning or tail-reused frame is about
// to discard), copying its value out before the slot is overwritten.
func (vm *VM) closeUpvalues(fromSlot int) {
	kept := vm.openUpvalues[:0]
	for _, o := range vm.openUpvalues {
		if o.slot >= fromSlot {
			o.uv.Close()
		} else {
			kept = append(kept, o)
		}
	}
	vm.openUpvalues = kept
}

func (vm *VM) binaryAdd() error {
	b, a := vm.pop(), vm.pop()
	if a.Type == value.VAL_NUMBER && b.Type == value.VAL_NUMBER {
		vm.push(value.NewNumber(a.AsNumber + b.AsNumber))
		return nil
	}
	if a.Type == value.VAL_STRING && b.Type == value.VAL_STRING {
		vm.push(value.NewString(a.AsString() + b.AsString()))
		return nil
	}
	if a.Type == value.VAL_STRING {
		vm.push(value.NewString(a.AsString() + b.String()))
		return nil
	}
	if b.Type == value.VAL_STRING {
		vm.push(value.NewString(a.String() + b.AsString()))
		return nil
	}
	return fmt.Errorf("'+' vereis twee getalle of ten minste een string")
}

func (vm *VM) binaryNumeric(op func(a, b float64) float64) error {
	b, a := vm.pop(), vm.pop()
	if a.Type != value.VAL_NUMBER || b.Type != value.VAL_NUMBER {
		return fmt.Errorf("rekenkundige operator vereis getalle")
	}
	vm.push(value.NewNumber(op(a.AsNumber, b.AsNumber)))
	return nil
}

func getIndex(coll, idx value.Value) (value.Value, error) {
	switch coll.Type {
	case value.VAL_LIST:
		list := coll.Obj.(*value.List)
		if idx.Type != value.VAL_NUMBER {
			return value.Value{}, fmt.Errorf("indeks moet 'n getal wees")
		}
		i := int(idx.AsNumber)
		if i < 0 {
			i += len(list.Elements)
		}
		if i < 0 || i >= len(list.Elements) {
			return value.Value{}, fmt.Errorf("indeks buite grense")
		}
		return list.Elements[i], nil
	case value.VAL_STRING:
		runes := []rune(coll.AsString())
		if idx.Type != value.VAL_NUMBER {
			return value.Value{}, fmt.Errorf("indeks moet 'n getal wees")
		}
		i := int(idx.AsNumber)
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return value.Value{}, fmt.Errorf("indeks buite grense")
		}
		return value.NewString(string(runes[i])), nil
	default:
		return value.Value{}, fmt.Errorf("kan nie indekseer op hierdie tipe nie")
	}
}
