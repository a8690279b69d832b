package vm

import (
	"fmt"

	"vonktaal/internal/plugin"
	"vonktaal/internal/value"
)

// registerPluginNatives wires 'laai_aanvoegsel' and the two fixed
// aanvoegsel-operation natives to internal/plugin. It mirrors the
// teacher's sys_load_plugin natives: loading is explicit and on demand,
// so a program that never calls laai_aanvoegsel never spawns a
// subprocess.
func registerPluginNatives(vm *VM) {
	define := func(name string, arity int, fn func(args []value.Value) (value.Value, error)) {
		vm.Globals[name] = value.NewNative(&value.NativeFunction{Name: name, Arity: arity, Fn: fn})
	}

	define("laai_aanvoegsel", 1, nativeLaaiAanvoegsel)
	define("stoor_afgeleë", 4, nativeStoorAfgelee)
	define("laai_afgeleë", 3, nativeLaaiAfgelee)
}

// nativeLaaiAanvoegsel spawns (or reuses) the named plugin's subprocess,
// connects it, and returns a handle value a later stoor_afgeleë /
// laai_afgeleë call carries back in to find the right client.
func nativeLaaiAanvoegsel(args []value.Value) (value.Value, error) {
	if args[0].Type != value.VAL_STRING {
		return value.Value{}, fmt.Errorf("'laai_aanvoegsel' verwag 'n string-naam")
	}
	naam := args[0].AsString()
	executableName := "vonktaal-" + naam + "-plugin"

	client, err := plugin.LoadPlugin(naam, executableName)
	if err != nil {
		return value.Value{}, err
	}

	clientIDVal, err := client.Call("connect", []value.Value{value.NewNil()})
	if err != nil {
		return value.Value{}, fmt.Errorf("kon nie aan aanvoegsel '%s' koppel nie: %v", naam, err)
	}

	return value.NewADT(&value.ADTInstance{
		TypeName:        "Aanvoegsel",
		ConstructorName: "Aanvoegsel",
		Fields:          []value.Value{value.NewString(naam), clientIDVal},
	}), nil
}

func aanvoegselFields(v value.Value) (naam, clientID string, err error) {
	if v.Type != value.VAL_ADT {
		return "", "", fmt.Errorf("verwag 'n aanvoegsel-handvatsel soos deur 'laai_aanvoegsel' teruggegee")
	}
	adt := v.Obj.(*value.ADTInstance)
	if adt.ConstructorName != "Aanvoegsel" || len(adt.Fields) != 2 {
		return "", "", fmt.Errorf("verwag 'n aanvoegsel-handvatsel soos deur 'laai_aanvoegsel' teruggegee")
	}
	return adt.Fields[0].AsString(), adt.Fields[1].AsString(), nil
}

// nativeStoorAfgelee snapshots a value to the aanvoegsel's backing table.
// Params: aanvoegsel, tabel, sleutel, waarde.
func nativeStoorAfgelee(args []value.Value) (value.Value, error) {
	naam, clientID, err := aanvoegselFields(args[0])
	if err != nil {
		return value.Value{}, err
	}
	if args[1].Type != value.VAL_STRING || args[2].Type != value.VAL_STRING {
		return value.Value{}, fmt.Errorf("'stoor_afgeleë' verwag string-tabel en string-sleutel")
	}

	client, ok := plugin.LoadedPlugins[naam]
	if !ok {
		return value.Value{}, fmt.Errorf("aanvoegsel '%s' is nie gelaai nie", naam)
	}

	_, err = client.Call("stoor_afgeleë", []value.Value{
		value.NewString(clientID), args[1], args[2], args[3],
	})
	if err != nil {
		return value.Value{}, err
	}
	return value.NewNil(), nil
}

// nativeLaaiAfgelee restores a value from the aanvoegsel's backing table,
// or nil when nothing was ever stored under that key.
// Params: aanvoegsel, tabel, sleutel.
func nativeLaaiAfgelee(args []value.Value) (value.Value, error) {
	naam, clientID, err := aanvoegselFields(args[0])
	if err != nil {
		return value.Value{}, err
	}
	if args[1].Type != value.VAL_STRING || args[2].Type != value.VAL_STRING {
		return value.Value{}, fmt.Errorf("'laai_afgeleë' verwag string-tabel en string-sleutel")
	}

	client, ok := plugin.LoadedPlugins[naam]
	if !ok {
		return value.Value{}, fmt.Errorf("aanvoegsel '%s' is nie gelaai nie", naam)
	}

	result, err := client.Call("laai_afgeleë", []value.Value{
		value.NewString(clientID), args[1], args[2],
	})
	if err != nil {
		return value.Value{}, err
	}
	return result, nil
}
