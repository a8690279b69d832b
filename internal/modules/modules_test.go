package modules

import (
	"os"
	"path/filepath"
	"testing"

	"vonktaal/internal/value"
	"vonktaal/internal/vm"
)

func writeModule(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("kon nie gids skep nie: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("kon nie module lêer skryf nie: %v", err)
	}
}

func TestLoadExportsOnlyMarkedGlobals(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "hulp.vonk", `
uitvoer laat antwoord = 42
laat privaat = 7
`)

	loader := NewLoader(root, nil)
	importer := vm.New()
	mod, err := loader.Load(importer, "hulp", "h")
	if err != nil {
		t.Fatalf("kon nie module laai nie: %v", err)
	}

	modObj, ok := mod.Obj.(*value.Module)
	if !ok || modObj == nil {
		t.Fatal("verwag 'n module-waarde")
	}
	antwoord, ok := modObj.Exports["antwoord"]
	if !ok || antwoord.Type != value.VAL_NUMBER || antwoord.AsNumber != 42 {
		t.Fatalf("verwag uitgevoerde 'antwoord' = 42, kry %v", modObj.Exports)
	}
	if _, ok := modObj.Exports["privaat"]; ok {
		t.Fatal("'privaat' is nie uitgevoer nie en moet nie in die module verskyn nie")
	}
}

func TestLoadCachesByImportPath(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "hulp.vonk", `uitvoer laat antwoord = 1`)

	loader := NewLoader(root, nil)
	importer := vm.New()
	first, err := loader.Load(importer, "hulp", "h")
	if err != nil {
		t.Fatalf("kon nie module laai nie: %v", err)
	}
	second, err := loader.Load(importer, "hulp", "h")
	if err != nil {
		t.Fatalf("kon nie gekaste module laai nie: %v", err)
	}
	if first.Obj != second.Obj {
		t.Fatal("verwag dieselfde module-instansie uit die kas")
	}
}

func TestLoadResolvesFromLibsDirectory(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, filepath.Join(libsDir, "ekstern.vonk"), `uitvoer laat weergawe = 1`)

	loader := NewLoader(root, nil)
	importer := vm.New()
	if _, err := loader.Load(importer, "ekstern", "e"); err != nil {
		t.Fatalf("verwag module in %s gevind te word: %v", libsDir, err)
	}
}

func TestLoadMissingModuleReturnsError(t *testing.T) {
	root := t.TempDir()
	loader := NewLoader(root, nil)
	importer := vm.New()

	if _, err := loader.Load(importer, "bestaan.nie", "x"); err == nil {
		t.Fatal("verwag 'n fout vir 'n onbestaande module")
	}
}

func TestLoadPropagatesParseErrors(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stukkend.vonk", `laat x = `)

	loader := NewLoader(root, nil)
	importer := vm.New()
	if _, err := loader.Load(importer, "stukkend", "s"); err == nil {
		t.Fatal("verwag 'n ontledingsfout vanuit die module")
	}
}

// TestLoadRemapsExportedFunctionIntoImporterTable guards against calling an
// imported function indexing the wrong VM's function-chunk table: the
// module compiles its own 'tel_op' into its own function table, and the
// importer must be able to call the exported value through its own.
func TestLoadRemapsExportedFunctionIntoImporterTable(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "rekenkunde.vonk", `
uitvoer laat tel_op = fn(a, b) => a + b
`)

	loader := NewLoader(root, nil)
	importer := vm.New()

	// Give the importer a function of its own first, so the module's
	// function table does not happen to land at offset zero by accident.
	importer.Functions = append(importer.Functions, nil)

	mod, err := loader.Load(importer, "rekenkunde", "r")
	if err != nil {
		t.Fatalf("kon nie module laai nie: %v", err)
	}

	exported := mod.Obj.(*value.Module).Exports["tel_op"]
	if exported.Type != value.VAL_FUNCTION {
		t.Fatalf("verwag 'n funksie-waarde, kry %v", exported.Type)
	}
	fn := exported.Obj.(*value.Function)
	if fn.ChunkIndex < 1 || fn.ChunkIndex >= len(importer.Functions) {
		t.Fatalf("funksie se ChunkIndex %d wys nie na 'n geldige plek in die invoerder se tabel nie (lengte %d)",
			fn.ChunkIndex, len(importer.Functions))
	}
	if importer.Functions[fn.ChunkIndex] == nil {
		t.Fatal("verwag die invoerder se tabel om die module se funksie-chunk te bevat")
	}
}
