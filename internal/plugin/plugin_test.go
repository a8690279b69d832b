package plugin

import (
	"testing"

	"vonktaal/internal/value"
)

func TestValueToInterfaceScalars(t *testing.T) {
	cases := []struct {
		in   value.Value
		want interface{}
	}{
		{value.NewNil(), nil},
		{value.NewBool(true), true},
		{value.NewNumber(3.5), 3.5},
		{value.NewString("hallo"), "hallo"},
	}
	for _, c := range cases {
		got := ValueToInterface(c.in)
		if got != c.want {
			t.Errorf("ValueToInterface(%v) = %v, wou %v", c.in, got, c.want)
		}
	}
}

func TestValueToInterfaceListRoundTrip(t *testing.T) {
	list := value.NewList([]value.Value{value.NewNumber(1), value.NewString("twee"), value.NewBool(false)})
	encoded := ValueToInterface(list)
	arr, ok := encoded.([]interface{})
	if !ok || len(arr) != 3 {
		t.Fatalf("verwag 'n 3-element slice, kry %v", encoded)
	}

	decoded := InterfaceToValue(encoded)
	elements := decoded.Obj.(*value.List).Elements
	if elements[0].AsNumber != 1 || elements[1].AsString() != "twee" || elements[2].AsBool != false {
		t.Errorf("lys het nie rondgereis nie: %v", elements)
	}
}

func TestValueToInterfaceADTRoundTrip(t *testing.T) {
	adt := value.NewADT(&value.ADTInstance{
		TypeName:        "Vorm",
		ConstructorName: "Sirkel",
		Fields:          []value.Value{value.NewNumber(3)},
	})

	encoded := ValueToInterface(adt)
	m, ok := encoded.(map[string]interface{})
	if !ok {
		t.Fatalf("verwag 'n map, kry %T", encoded)
	}
	if m["__tipe__"] != "Vorm" || m["__konstr__"] != "Sirkel" {
		t.Fatalf("getikte objek het nie die regte vorm nie: %v", m)
	}

	decoded := InterfaceToValue(encoded)
	restored := decoded.Obj.(*value.ADTInstance)
	if restored.TypeName != "Vorm" || restored.ConstructorName != "Sirkel" {
		t.Errorf("ADT-instansie het nie rondgereis nie: %+v", restored)
	}
	if len(restored.Fields) != 1 || restored.Fields[0].AsNumber != 3 {
		t.Errorf("ADT-velde het nie rondgereis nie: %v", restored.Fields)
	}
}

func TestLoadPluginMissingExecutableReturnsError(t *testing.T) {
	t.Cleanup(func() {
		PluginsLock.Lock()
		delete(LoadedPlugins, "bestaan-nie")
		PluginsLock.Unlock()
	})

	_, err := LoadPlugin("bestaan-nie", "vonktaal-bestaan-nie-plugin-xyz")
	if err == nil {
		t.Fatal("verwag 'n fout wanneer die aanvoegsel se uitvoerbare lêer nie gevind kan word nie")
	}
}

func TestCallOnStoppedClientReturnsError(t *testing.T) {
	client := &PluginClient{Name: "gestop", Running: false}

	_, err := client.Call("enige_metode", nil)
	if err == nil {
		t.Fatal("verwag 'n fout wanneer die aanvoegsel nie meer loop nie")
	}
}
