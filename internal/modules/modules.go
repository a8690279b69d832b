// Package modules resolves a 'gebruik' import path to a file on disk,
// compiles and runs it in its own VM, and hands back its 'uitvoer'-ed
// globals as a Module value.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vonktaal/internal/chunk"
	"vonktaal/internal/compiler"
	"vonktaal/internal/lexer"
	"vonktaal/internal/parser"
	"vonktaal/internal/value"
	"vonktaal/internal/vm"
)

const fileExtension = ".vonk"
const libsDir = "vonktaal_libs"

// loadedModule is the result of compiling and running a module file exactly
// once: its exported globals and the function-chunk table those globals'
// ChunkIndex fields are relative to. It is cached per path, independent of
// who imports it, since which VM ends up calling an exported function
// varies per importer.
type loadedModule struct {
	exports   map[string]value.Value
	functions []*chunk.Chunk
}

// Loader caches loaded modules by import path, so a diamond-shaped import
// graph only compiles and runs each file once.
type Loader struct {
	RootPath string
	Store    vm.Store

	cache      map[string]*loadedModule
	remapCache map[*vm.VM]map[string]value.Value
}

func NewLoader(rootPath string, store vm.Store) *Loader {
	return &Loader{
		RootPath:   rootPath,
		Store:      store,
		cache:      make(map[string]*loadedModule),
		remapCache: make(map[*vm.VM]map[string]value.Value),
	}
}

// Load satisfies vm.ModuleLoader. A module's top-level code compiles and
// runs at most once per path; the Module value handed back to importer is
// still rebuilt per importer, since an exported function's ChunkIndex only
// means something relative to the VM that is about to call it.
func (l *Loader) Load(importer *vm.VM, path, alias string) (value.Value, error) {
	if perImporter, ok := l.remapCache[importer]; ok {
		if cached, ok := perImporter[path]; ok {
			return cached, nil
		}
	}

	lm, ok := l.cache[path]
	if !ok {
		var err error
		lm, err = l.compileAndRun(path)
		if err != nil {
			return value.Value{}, err
		}
		l.cache[path] = lm
	}

	modVal := value.NewModule(&value.Module{
		Path:    path,
		Exports: remapExports(importer, lm.functions, lm.exports),
	})

	if l.remapCache[importer] == nil {
		l.remapCache[importer] = make(map[string]value.Value)
	}
	l.remapCache[importer][path] = modVal
	return modVal, nil
}

func (l *Loader) compileAndRun(path string) (*loadedModule, error) {
	filePath, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("kon nie module '%s' lees nie: %v", path, err)
	}

	lx := lexer.New(string(content))
	p := parser.New(lx)
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("module '%s' het ontledingsfoute: %s", path, strings.Join(p.Errors(), "; "))
	}

	comp := compiler.New(filePath)
	mainChunk, functions, err := comp.Compile(program)
	if err != nil {
		return nil, fmt.Errorf("module '%s' het samestellingsfoute: %v", path, err)
	}

	modVM := vm.New()
	modVM.Store = l.Store
	modVM.ModuleLoader = l.Load

	// The module's own top-level 'druk' calls still go to stdout; only
	// globals marked 'uitvoer' cross back into the importer.
	if _, err := modVM.Run(mainChunk, functions); err != nil {
		return nil, fmt.Errorf("module '%s' het 'n looptydfout: %v", path, err)
	}

	exports := make(map[string]value.Value)
	for name := range comp.ExportedSymbols() {
		if v, ok := modVM.Globals[name]; ok {
			exports[name] = v
		}
	}

	return &loadedModule{exports: exports, functions: functions}, nil
}

// remapExports copies a module's exported globals, rewriting any function
// or closure's ChunkIndex to point into importer's own function-chunk
// table instead of the module's. The module's function chunks are appended
// to importer.Functions on first use so CallFrame construction
// (vm.Functions[fn.ChunkIndex]) resolves against the VM that will actually
// run them. Plain data exports pass through unchanged.
func remapExports(importer *vm.VM, functions []*chunk.Chunk, exports map[string]value.Value) map[string]value.Value {
	offset := -1
	remapped := make(map[string]value.Value, len(exports))
	for name, v := range exports {
		switch v.Type {
		case value.VAL_FUNCTION, value.VAL_CLOSURE:
			if offset == -1 {
				offset = len(importer.Functions)
				importer.Functions = append(importer.Functions, functions...)
			}
			remapped[name] = remapCallable(v, offset)
		default:
			remapped[name] = v
		}
	}
	return remapped
}

func remapCallable(v value.Value, offset int) value.Value {
	switch v.Type {
	case value.VAL_FUNCTION:
		fn := *v.Obj.(*value.Function)
		fn.ChunkIndex += offset
		return value.NewFunction(&fn)
	case value.VAL_CLOSURE:
		closure := v.Obj.(*value.Closure)
		fn := *closure.Function
		fn.ChunkIndex += offset
		return value.NewClosure(&value.Closure{Function: &fn, Upvalues: closure.Upvalues})
	default:
		return v
	}
}

// resolve turns a dotted import path ("hulp.lyste") into a file, trying
// the project root first and then the local library directory.
func (l *Loader) resolve(path string) (string, error) {
	rel := strings.ReplaceAll(path, ".", string(filepath.Separator)) + fileExtension
	candidates := []string{
		filepath.Join(l.RootPath, rel),
		filepath.Join(l.RootPath, libsDir, rel),
		rel,
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("kon nie module '%s' vind nie", path)
}
