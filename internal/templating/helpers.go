package templating

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template"
)

var reservedHelpers = map[string]struct{}{
	"include": {},
	"invoke":  {},
	"join":    {},
	"has":     {},
	"lower":   {},
	"upper":   {},
}

func (e *Environment) builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"include": e.include,
		"invoke":  e.invokeValues,
		"join":    join,
		"has":     has,
		"lower":   strings.ToLower,
		"upper":   strings.ToUpper,
	}
}

// include renders another template by name, with the caller's data when
// no explicit context is given.
func (e *Environment) include(name string, data ...any) (string, error) {
	tpl, err := e.lookup(name)
	if err != nil {
		return "", err
	}
	var ctx any
	if len(data) > 0 {
		ctx = data[0]
	}
	return e.execute(tpl, name, ctx)
}

func (e *Environment) invokeValues(name string, args ...any) ([]any, error) {
	results := e.Invoke(name, args...)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrHelperNotFound, name)
	}
	values := make([]any, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
			continue
		}
		values = append(values, r.Value)
	}
	return values, errors.Join(errs...)
}

func join(sep string, items any) (string, error) {
	parts, err := stringsOf(items)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, sep), nil
}

func has(items any, item any) (bool, error) {
	if items == nil {
		return false, nil
	}
	v := reflect.ValueOf(items)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if reflect.DeepEqual(v.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		key := reflect.ValueOf(item)
		if !key.IsValid() || !key.Type().AssignableTo(v.Type().Key()) {
			return false, nil
		}
		return v.MapIndex(key).IsValid(), nil
	default:
		return false, fmt.Errorf("has: unsupported collection %T", items)
	}
}

func stringsOf(items any) ([]string, error) {
	switch s := items.(type) {
	case nil:
		return nil, nil
	case []string:
		return s, nil
	}
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", items)
	}
	out := make([]string, v.Len())
	for i := range v.Len() {
		out[i] = fmt.Sprint(v.Index(i).Interface())
	}
	return out, nil
}

// call applies args to an arbitrary helper function, converting numbers
// where needed. Panics inside the helper become errors.
func call(fn any, args []any) (result any, err error) {
	v := reflect.ValueOf(fn)
	t := v.Type()

	want := t.NumIn()
	if t.IsVariadic() {
		if len(args) < want-1 {
			return nil, fmt.Errorf("want at least %d arguments, got %d", want-1, len(args))
		}
	} else if len(args) != want {
		return nil, fmt.Errorf("want %d arguments, got %d", want, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var typ reflect.Type
		if t.IsVariadic() && i >= want-1 {
			typ = t.In(want - 1).Elem()
		} else {
			typ = t.In(i)
		}
		arg, argErr := prepareArg(a, typ)
		if argErr != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, argErr)
		}
		in[i] = arg
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("helper panicked: %v", r)
		}
	}()

	out := v.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			if e, _ := out[0].Interface().(error); e != nil {
				return nil, e
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	default:
		if e, _ := out[1].Interface().(error); e != nil {
			return out[0].Interface(), e
		}
		return out[0].Interface(), nil
	}
}

func prepareArg(a any, typ reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch typ.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(typ), nil
		default:
			return reflect.Value{}, fmt.Errorf("nil for %s", typ)
		}
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(typ) {
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(typ.Kind()) {
		return v.Convert(typ), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, typ)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
