// Package tag fills zero-valued struct fields from `default:"..."` tags.
package tag

import (
	"reflect"
	"strings"
)

const (
	tagName  = "default"
	maxDepth = 32
)

// ApplyDefaults sets every zero-valued exported field of the struct pointed
// to by target from its default tag. Nested structs and pointers to structs
// are walked; non-zero fields are left alone.
//
//	type Config struct {
//	    Timeout time.Duration `default:"30s"`
//	    Headers map[string]string `default:"accept:application/json"`
//	}
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrTargetMustBePointer
	}
	return applyStruct(v.Elem(), "", 0)
}

func applyStruct(v reflect.Value, prefix string, depth int) error {
	if depth >= maxDepth {
		return ErrMaxDepthExceeded
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}

		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}
		if err := applyField(fv, field.Tag.Get(tagName), path, depth); err != nil {
			return err
		}
	}
	return nil
}

func applyField(v reflect.Value, def, path string, depth int) error {
	switch v.Kind() {
	case reflect.Struct:
		return applyStruct(v, path, depth+1)

	case reflect.Pointer:
		if v.Type().Elem().Kind() == reflect.Struct {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			return applyStruct(v.Elem(), path, depth+1)
		}
		if !v.IsNil() || def == "" {
			return nil
		}
		elem := reflect.New(v.Type().Elem())
		if err := parse(elem.Elem(), def); err != nil {
			return &FieldError{Path: path, Kind: v.Kind(), Value: def, Err: err}
		}
		v.Set(elem)
		return nil

	case reflect.Slice:
		if v.Len() > 0 {
			return applyElements(v, path, depth)
		}
	}

	if def == "" || !v.IsZero() {
		return nil
	}
	if err := parse(v, def); err != nil {
		return &FieldError{Path: path, Kind: v.Kind(), Value: def, Err: err}
	}
	return nil
}

// applyElements walks struct elements of an already populated slice.
func applyElements(v reflect.Value, path string, depth int) error {
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Pointer && !elem.IsNil() {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			continue
		}
		if err := applyStruct(elem, path, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// parseMap reads "k:v,k:v".
func parseMap(v reflect.Value, s string) error {
	m := reflect.MakeMap(v.Type())
	for pair := range strings.SplitSeq(s, ",") {
		k, val, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key := reflect.New(v.Type().Key()).Elem()
		if err := parse(key, strings.TrimSpace(k)); err != nil {
			return err
		}
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := parse(elem, strings.TrimSpace(val)); err != nil {
			return err
		}
		m.SetMapIndex(key, elem)
	}
	v.Set(m)
	return nil
}
