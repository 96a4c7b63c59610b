package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
)

// Params is a flat query parameter mapping. Values may be scalars, pointers or slices.
// Nil values and nil pointers are dropped; slices become repeated keys.
type Params map[string]any

// Encode serializes the params into url.Values
func (p Params) Encode() url.Values {
	values := url.Values{}
	for key, value := range p {
		addParam(values, key, value)
	}
	return values
}

func addParam(values url.Values, key string, value any) {
	v, ok := deref(value)
	if !ok {
		return
	}
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			values.Add(key, string(v.Bytes()))
			return
		}
		for i := 0; i < v.Len(); i++ {
			if item, ok := deref(v.Index(i).Interface()); ok {
				values.Add(key, fmt.Sprint(item.Interface()))
			}
		}
		return
	}
	values.Add(key, fmt.Sprint(v.Interface()))
}

// deref follows pointers and interfaces. ok is false for nil.
func deref(value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.Value{}, false
	}
	return v, true
}
