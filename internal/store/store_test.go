package store

import (
	"path/filepath"
	"testing"

	"vonktaal/internal/value"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toets.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("kon nie stoorplek oopmaak nie: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("bestaan-nie")
	if err != nil {
		t.Fatalf("onverwagte fout: %v", err)
	}
	if ok {
		t.Fatal("verwag geen waarde vir 'n onbekende sleutel nie")
	}
}

func TestSetAndGetNumber(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("ouderdom", value.NewNumber(42)); err != nil {
		t.Fatalf("kon nie stoor nie: %v", err)
	}

	got, ok, err := s.Get("ouderdom")
	if err != nil {
		t.Fatalf("kon nie laai nie: %v", err)
	}
	if !ok {
		t.Fatal("verwag 'n waarde")
	}
	if got.Type != value.VAL_NUMBER || got.AsNumber != 42 {
		t.Errorf("verwag 42, kry %v", got)
	}
}

func TestSetAndGetString(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("naam", value.NewString("vonktaal")); err != nil {
		t.Fatalf("kon nie stoor nie: %v", err)
	}

	got, ok, err := s.Get("naam")
	if err != nil || !ok {
		t.Fatalf("kon nie laai nie: ok=%v err=%v", ok, err)
	}
	if got.AsString() != "vonktaal" {
		t.Errorf("verwag %q, kry %q", "vonktaal", got.AsString())
	}
}

func TestSetAndGetList(t *testing.T) {
	s := openTestStore(t)

	list := value.NewList([]value.Value{value.NewNumber(1), value.NewNumber(2), value.NewNumber(3)})
	if err := s.Set("lys", list); err != nil {
		t.Fatalf("kon nie stoor nie: %v", err)
	}

	got, ok, err := s.Get("lys")
	if err != nil || !ok {
		t.Fatalf("kon nie laai nie: ok=%v err=%v", ok, err)
	}
	elements := got.Obj.(*value.List).Elements
	if len(elements) != 3 || elements[2].AsNumber != 3 {
		t.Errorf("lys het nie behoue gebly nie: %v", elements)
	}
}

func TestSetAndGetADTInstance(t *testing.T) {
	s := openTestStore(t)

	adt := value.NewADT(&value.ADTInstance{
		TypeName:        "Vorm",
		ConstructorName: "Sirkel",
		Fields:          []value.Value{value.NewNumber(3)},
	})
	if err := s.Set("vorm", adt); err != nil {
		t.Fatalf("kon nie stoor nie: %v", err)
	}

	got, ok, err := s.Get("vorm")
	if err != nil || !ok {
		t.Fatalf("kon nie laai nie: ok=%v err=%v", ok, err)
	}
	restored := got.Obj.(*value.ADTInstance)
	if restored.TypeName != "Vorm" || restored.ConstructorName != "Sirkel" {
		t.Errorf("ADT-instansie het nie behoue gebly nie: %+v", restored)
	}
	if len(restored.Fields) != 1 || restored.Fields[0].AsNumber != 3 {
		t.Errorf("ADT-velde het nie behoue gebly nie: %v", restored.Fields)
	}
}

func TestSetOverwritesExistingKey(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("teller", value.NewNumber(1)); err != nil {
		t.Fatalf("kon nie stoor nie: %v", err)
	}
	if err := s.Set("teller", value.NewNumber(2)); err != nil {
		t.Fatalf("kon nie oorskryf nie: %v", err)
	}

	got, ok, err := s.Get("teller")
	if err != nil || !ok {
		t.Fatalf("kon nie laai nie: ok=%v err=%v", ok, err)
	}
	if got.AsNumber != 2 {
		t.Errorf("verwag 2, kry %v", got.AsNumber)
	}
}
