package vm

import (
	"fmt"

	"github.com/google/uuid"

	"vonktaal/internal/value"
)

// registerNatives installs the fixed set of built-ins every Vonktaal
// program can call without an import. The higher-order ones (kaart,
// filter, vou, vir_elk) close over vm so they can call back into
// compiled Vonktaal functions through the normal calling convention;
// nothing about them needs special-casing in the opcode dispatch loop.
func registerNatives(vm *VM) {
	define := func(name string, arity int, fn func(args []value.Value) (value.Value, error)) {
		vm.Globals[name] = value.NewNative(&value.NativeFunction{Name: name, Arity: arity, Fn: fn})
	}

	define("lengte", 1, nativeLengte)
	define("kop", 1, nativeKop)
	define("stert", 1, nativeStert)
	define("leeg", 1, nativeLeeg)
	define("voeg_by", 2, nativeVoegBy)
	define("heg_aan", 2, nativeHegAan)
	define("ketting", 2, nativeKetting)
	define("omgekeer", 1, nativeOmgekeer)
	define("uniek_id", 0, nativeUniekID)

	define("kaart", 2, func(args []value.Value) (value.Value, error) {
		return vm.hofKaart(args[0], args[1])
	})
	define("filter", 2, func(args []value.Value) (value.Value, error) {
		return vm.hofFilter(args[0], args[1])
	})
	define("vou", 3, func(args []value.Value) (value.Value, error) {
		return vm.hofVou(args[0], args[1], args[2])
	})
	define("vir_elk", 2, func(args []value.Value) (value.Value, error) {
		return vm.hofVirElk(args[0], args[1])
	})

	define("stoor", 2, func(args []value.Value) (value.Value, error) {
		if vm.Store == nil {
			return value.Value{}, fmt.Errorf("stoor is nie beskikbaar nie")
		}
		if args[0].Type != value.VAL_STRING {
			return value.Value{}, fmt.Errorf("stoor se eerste argument moet 'n string-sleutel wees")
		}
		if err := vm.Store.Set(args[0].AsString(), args[1]); err != nil {
			return value.Value{}, err
		}
		return value.NewNil(), nil
	})
	define("laai", 1, func(args []value.Value) (value.Value, error) {
		if vm.Store == nil {
			return value.Value{}, fmt.Errorf("laai is nie beskikbaar nie")
		}
		if args[0].Type != value.VAL_STRING {
			return value.Value{}, fmt.Errorf("laai se argument moet 'n string-sleutel wees")
		}
		v, ok, err := vm.Store.Get(args[0].AsString())
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.NewNil(), nil
		}
		return v, nil
	})
}

func wantList(v value.Value, who string) (*value.List, error) {
	if v.Type != value.VAL_LIST {
		return nil, fmt.Errorf("'%s' verwag 'n lys", who)
	}
	return v.Obj.(*value.List), nil
}

func nativeLengte(args []value.Value) (value.Value, error) {
	switch args[0].Type {
	case value.VAL_LIST:
		return value.NewNumber(float64(len(args[0].Obj.(*value.List).Elements))), nil
	case value.VAL_STRING:
		return value.NewNumber(float64(len([]rune(args[0].AsString())))), nil
	default:
		return value.Value{}, fmt.Errorf("'lengte' verwag 'n lys of 'n string")
	}
}

func nativeKop(args []value.Value) (value.Value, error) {
	list, err := wantList(args[0], "kop")
	if err != nil {
		return value.Value{}, err
	}
	if len(list.Elements) == 0 {
		return value.Value{}, fmt.Errorf("'kop' van 'n leë lys")
	}
	return list.Elements[0], nil
}

func nativeStert(args []value.Value) (value.Value, error) {
	list, err := wantList(args[0], "stert")
	if err != nil {
		return value.Value{}, err
	}
	if len(list.Elements) == 0 {
		return value.Value{}, fmt.Errorf("'stert' van 'n leë lys")
	}
	rest := make([]value.Value, len(list.Elements)-1)
	copy(rest, list.Elements[1:])
	return value.NewList(rest), nil
}

func nativeLeeg(args []value.Value) (value.Value, error) {
	list, err := wantList(args[0], "leeg")
	if err != nil {
		return value.Value{}, err
	}
	return value.NewBool(len(list.Elements) == 0), nil
}

func nativeVoegBy(args []value.Value) (value.Value, error) {
	list, err := wantList(args[0], "voeg_by")
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, len(list.Elements)+1)
	copy(out, list.Elements)
	out[len(list.Elements)] = args[1]
	return value.NewList(out), nil
}

func nativeHegAan(args []value.Value) (value.Value, error) {
	list, err := wantList(args[1], "heg_aan")
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, len(list.Elements)+1)
	out[0] = args[0]
	copy(out[1:], list.Elements)
	return value.NewList(out), nil
}

func nativeKetting(args []value.Value) (value.Value, error) {
	a, err := wantList(args[0], "ketting")
	if err != nil {
		return value.Value{}, err
	}
	b, err := wantList(args[1], "ketting")
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, 0, len(a.Elements)+len(b.Elements))
	out = append(out, a.Elements...)
	out = append(out, b.Elements...)
	return value.NewList(out), nil
}

func nativeOmgekeer(args []value.Value) (value.Value, error) {
	list, err := wantList(args[0], "omgekeer")
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, len(list.Elements))
	for i, v := range list.Elements {
		out[len(list.Elements)-1-i] = v
	}
	return value.NewList(out), nil
}

func nativeUniekID(args []value.Value) (value.Value, error) {
	return value.NewString(uuid.NewString()), nil
}

func (vm *VM) hofKaart(listVal, fnVal value.Value) (value.Value, error) {
	list, err := wantList(listVal, "kaart")
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, len(list.Elements))
	for i, elem := range list.Elements {
		result, err := vm.callValue(fnVal, []value.Value{elem})
		if err != nil {
			return value.Value{}, err
		}
		out[i] = result
	}
	return value.NewList(out), nil
}

func (vm *VM) hofFilter(listVal, fnVal value.Value) (value.Value, error) {
	list, err := wantList(listVal, "filter")
	if err != nil {
		return value.Value{}, err
	}
	var out []value.Value
	for _, elem := range list.Elements {
		keep, err := vm.callValue(fnVal, []value.Value{elem})
		if err != nil {
			return value.Value{}, err
		}
		if keep.IsTruthy() {
			out = append(out, elem)
		}
	}
	if out == nil {
		out = []value.Value{}
	}
	return value.NewList(out), nil
}

func (vm *VM) hofVou(listVal, initVal, fnVal value.Value) (value.Value, error) {
	list, err := wantList(listVal, "vou")
	if err != nil {
		return value.Value{}, err
	}
	acc := initVal
	for _, elem := range list.Elements {
		acc, err = vm.callValue(fnVal, []value.Value{acc, elem})
		if err != nil {
			return value.Value{}, err
		}
	}
	return acc, nil
}

func (vm *VM) hofVirElk(listVal, fnVal value.Value) (value.Value, error) {
	list, err := wantList(listVal, "vir_elk")
	if err != nil {
		return value.Value{}, err
	}
	for _, elem := range list.Elements {
		if _, err := vm.callValue(fnVal, []value.Value{elem}); err != nil {
			return value.Value{}, err
		}
	}
	return value.NewNil(), nil
}
