package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// loadFromEnv overrides fields carrying an `env` tag with the variables that
// are set and non-empty.
func loadFromEnv(cfg *Config) error {
	return applyEnv(reflect.ValueOf(cfg))
}

func applyEnv(ptr reflect.Value) error {
	if ptr.Kind() != reflect.Ptr {
		return fmt.Errorf("expected pointer, got %s", ptr.Kind())
	}
	val := ptr.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", val.Kind())
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field.Addr()); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, sf.Type, raw); err != nil {
			return fmt.Errorf("failed to set field %s from env var %s: %w", sf.Name, name, err)
		}
	}
	return nil
}

// setField parses raw into field according to its type.
func setField(field reflect.Value, typ reflect.Type, raw string) error {
	if !field.CanSet() {
		return fmt.Errorf("field of type %s is not settable", typ)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", raw)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if typ == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", raw)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", raw)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", raw)
		}
		field.SetUint(n)

	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", typ.Elem().Kind())
		}
		// Comma-separated, blanks dropped.
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		slice := reflect.MakeSlice(typ, len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		field.Set(slice)

	case reflect.Map:
		if typ.Key().Kind() != reflect.String || typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported map type: %s -> %s", typ.Key().Kind(), typ.Elem().Kind())
		}
		// key=value,key2=value2
		m := reflect.MakeMap(typ)
		for _, pair := range strings.Split(raw, ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("invalid map entry format: %s", pair)
			}
			m.SetMapIndex(reflect.ValueOf(kv[0]), reflect.ValueOf(kv[1]))
		}
		field.Set(m)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
