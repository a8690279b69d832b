// Package store backs the 'stoor'/'laai' natives with a small SQLite
// table, so a Vonktaal script can persist a value across runs without
// reaching for a file format of its own.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"vonktaal/internal/value"
)

type SQLiteStore struct {
	db *sql.DB
}

func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kon nie databasis oopmaak nie: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS stoorplek (
		sleutel TEXT PRIMARY KEY,
		waarde TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kon nie skema skep nie: %v", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Set(key string, v value.Value) error {
	encoded, err := json.Marshal(encode(v))
	if err != nil {
		return fmt.Errorf("kon nie waarde enkodeer nie: %v", err)
	}
	_, err = s.db.Exec(`INSERT INTO stoorplek (sleutel, waarde) VALUES (?, ?)
		ON CONFLICT(sleutel) DO UPDATE SET waarde = excluded.waarde`, key, string(encoded))
	return err
}

func (s *SQLiteStore) Get(key string) (value.Value, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT waarde FROM stoorplek WHERE sleutel = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return value.Value{}, false, nil
	}
	if err != nil {
		return value.Value{}, false, fmt.Errorf("kon nie waarde lees nie: %v", err)
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return value.Value{}, false, fmt.Errorf("kon nie waarde dekodeer nie: %v", err)
	}
	return decode(decoded), true, nil
}

// encode/decode give a stored value the same tagged-object shape the
// plugin bridge uses for ADT instances (__tipe__/__konstr__/velde), so
// the two persistence paths stay consistent.
func encode(v value.Value) interface{} {
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
			arr[i] = encode(e)
		}
		return arr
	case value.VAL_ADT:
		adt := v.Obj.(*value.ADTInstance)
		fields := make([]interface{}, len(adt.Fields))
		for i, f := range adt.Fields {
			fields[i] = encode(f)
		}
		return map[string]interface{}{
			"__tipe__":   adt.TypeName,
			"__konstr__": adt.ConstructorName,
			"velde":      fields,
		}
	default:
		return nil
	}
}

func decode(i interface{}) value.Value {
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
		for idx, e := range v {
			arr[idx] = decode(e)
		}
		return value.NewList(arr)
	case map[string]interface{}:
		if ctor, ok := v["__konstr__"].(string); ok {
			typeName, _ := v["__tipe__"].(string)
			rawFields, _ := v["velde"].([]interface{})
			fields := make([]value.Value, len(rawFields))
			for idx, f := range rawFields {
				fields[idx] = decode(f)
			}
			return value.NewADT(&value.ADTInstance{TypeName: typeName, ConstructorName: ctor, Fields: fields})
		}
		return value.NewNil()
	default:
		return value.NewNil()
	}
}
