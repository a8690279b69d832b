package plugin

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"vonktaal/internal/value"
)

// PluginRequest is one call sent over a plugin's stdin, newline-delimited
// JSON in, newline-delimited JSON out.
type PluginRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type PluginResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type PluginClient struct {
	Name    string
	Cmd     *exec.Cmd
	Stdin   io.WriteCloser
	Stdout  *bufio.Scanner
	Running bool
	Lock    sync.Mutex
}

var (
	LoadedPlugins = make(map[string]*PluginClient)
	PluginsLock   sync.Mutex
)

// LoadPlugin starts (or reuses) a plugin subprocess, found first on PATH,
// then under vonktaal_libs/<name>/<executableName>, then relative to the
// current directory.
func LoadPlugin(name string, executableName string) (*PluginClient, error) {
	PluginsLock.Lock()
	defer PluginsLock.Unlock()

	if client, ok := LoadedPlugins[name]; ok {
		return client, nil
	}

	var execPath string
	if path, err := exec.LookPath(executableName); err == nil {
		execPath = path
	} else {
		libPath := filepath.Join("vonktaal_libs", name, executableName)
		if _, err := os.Stat(libPath); err == nil {
			execPath, _ = filepath.Abs(libPath)
		} else if _, err := os.Stat(libPath + ".exe"); err == nil {
			execPath, _ = filepath.Abs(libPath + ".exe")
		} else if _, err := os.Stat(executableName); err == nil {
			execPath, _ = filepath.Abs(executableName)
		}
	}

	if execPath == "" {
		return nil, fmt.Errorf("kan nie aanvoegsel '%s' vind nie", executableName)
	}

	cmd := exec.Command(execPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("kon nie stdin-pyp skep nie: %v", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("kon nie stdout-pyp skep nie: %v", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("kon nie aanvoegsel begin nie: %v", err)
	}

	client := &PluginClient{
		Name:    name,
		Cmd:     cmd,
		Stdin:   stdin,
		Stdout:  bufio.NewScanner(stdoutPipe),
		Running: true,
	}
	client.Stdout.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	LoadedPlugins[name] = client
	return client, nil
}

// Call invokes one method on a running plugin and blocks for its reply.
// A transport failure or a plugin-reported error both come back as a Go
// error, rather than a silent nil value, so a native wrapping Call can
// propagate it through the normal Vonktaal error-returning convention.
func (c *PluginClient) Call(method string, args []value.Value) (value.Value, error) {
	c.Lock.Lock()
	defer c.Lock.Unlock()

	if !c.Running {
		return value.Value{}, fmt.Errorf("aanvoegsel '%s' loop nie meer nie", c.Name)
	}

	jsonArgs := make([]interface{}, len(args))
	for i, arg := range args {
		jsonArgs[i] = ValueToInterface(arg)
	}

	reqBytes, err := json.Marshal(PluginRequest{Method: method, Params: jsonArgs})
	if err != nil {
		return value.Value{}, fmt.Errorf("kon nie versoek enkodeer nie: %v", err)
	}

	if _, err := c.Stdin.Write(append(reqBytes, '\n')); err != nil {
		c.Running = false
		return value.Value{}, fmt.Errorf("kon nie na aanvoegsel skryf nie: %v", err)
	}

	if !c.Stdout.Scan() {
		c.Running = false
		if err := c.Stdout.Err(); err != nil {
			return value.Value{}, fmt.Errorf("kon nie van aanvoegsel lees nie: %v", err)
		}
		return value.Value{}, fmt.Errorf("aanvoegsel het onverwags gesluit")
	}

	var resp PluginResponse
	if err := json.Unmarshal(c.Stdout.Bytes(), &resp); err != nil {
		return value.Value{}, fmt.Errorf("kon nie antwoord dekodeer nie: %v", err)
	}
	if resp.Error != "" {
		return value.Value{}, fmt.Errorf("%s", resp.Error)
	}
	return InterfaceToValue(resp.Result), nil
}

// ValueToInterface and InterfaceToValue convert between a Vonktaal Value
// and the plain interface{} tree encoding/json knows how to marshal,
// giving ADT instances a tagged-object shape a plugin written in another
// language can still read.

func ValueToInterface(v value.Value) interface{} {
	switch v.Type {
	case value.VAL_NIL:
		return nil
	case value.VAL_BOOL:
		return v.AsBool
	case value.VAL_NUMBER:
		return v.AsNumber
	case value.VAL_STRING:
		return v.AsString()
	case value.VAL_LIST:
		list := v.Obj.(*value.List)
		arr := make([]interface{}, len(list.Elements))
		for i, e := range list.Elements {
			arr[i] = ValueToInterface(e)
		}
		return arr
	case value.VAL_ADT:
		adt := v.Obj.(*value.ADTInstance)
		fields := make([]interface{}, len(adt.Fields))
		for i, f := range adt.Fields {
			fields[i] = ValueToInterface(f)
		}
		return map[string]interface{}{
			"__tipe__":   adt.TypeName,
			"__konstr__": adt.ConstructorName,
			"velde":      fields,
		}
	default:
		return fmt.Sprintf("%v", v.String())
	}
}

func InterfaceToValue(i interface{}) value.Value {
	if i == nil {
		return value.NewNil()
	}
	switch v := i.(type) {
	case bool:
		return value.NewBool(v)
	case float64:
		return value.NewNumber(v)
	case string:
		return value.NewString(v)
	case []interface{}:
		arr := make([]value.Value, len(v))
		for idx, elm := range v {
			arr[idx] = InterfaceToValue(elm)
		}
		return value.NewList(arr)
	case map[string]interface{}:
		if ctor, ok := v["__konstr__"].(string); ok {
			typeName, _ := v["__tipe__"].(string)
			rawFields, _ := v["velde"].([]interface{})
			fields := make([]value.Value, len(rawFields))
			for idx, f := range rawFields {
				fields[idx] = InterfaceToValue(f)
			}
			return value.NewADT(&value.ADTInstance{TypeName: typeName, ConstructorName: ctor, Fields: fields})
		}
		elems := make([]value.Value, 0, len(v))
		for _, val := range v {
			elems = append(elems, InterfaceToValue(val))
		}
		return value.NewList(elems)
	default:
		return value.NewString(fmt.Sprintf("%v", v))
	}
}
