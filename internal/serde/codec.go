package serde

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Codec serializes values for capture and restores them for replay.
type Codec interface {
	// Serialize encodes v.
	Serialize(v any) ([]byte, error)
	// Deserialize decodes data into target, which must be a non-nil pointer.
	Deserialize(data []byte, target any) error
	// DeserializeInPlace overwrites target in place. target is a non-nil
	// pointer, map or slice; maps, slices and structs are replaced wholesale,
	// never merged.
	DeserializeInPlace(data []byte, target any) error
}

// Error wraps a codec failure.
type Error struct {
	Op   string // "serialize" or "deserialize"
	Type string // Go type involved
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("serde %s %s: %v", e.Op, e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

// Serialize encodes v as compact JSON without HTML escaping.
func (JSONCodec) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, &Error{Op: "serialize", Type: TypeName(v), Err: err}
	}
	// json.Encoder adds trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Deserialize decodes data into target.
func (JSONCodec) Deserialize(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Op: "deserialize", Type: TypeName(target), Err: err}
	}
	return nil
}

// DeserializeInPlace zeroes *target before decoding so container values do
// not keep stale entries.
//
// A map or slice passed by value is restored through its shared storage: a
// map is cleared and refilled, a slice has the decoded elements copied over
// its existing backing array (up to its current length).
func (c JSONCodec) DeserializeInPlace(data []byte, target any) error {
	rv := reflect.ValueOf(target)
	if !CanRestoreInPlace(target) {
		return &Error{Op: "deserialize", Type: TypeName(target), Err: fmt.Errorf("in-place target must be a non-nil pointer, map or slice")}
	}

	switch rv.Kind() {
	case reflect.Map:
		fresh := reflect.New(rv.Type())
		if err := c.Deserialize(data, fresh.Interface()); err != nil {
			return err
		}
		rv.Clear()
		iter := fresh.Elem().MapRange()
		for iter.Next() {
			rv.SetMapIndex(iter.Key(), iter.Value())
		}
		return nil

	case reflect.Slice:
		fresh := reflect.New(rv.Type())
		if err := c.Deserialize(data, fresh.Interface()); err != nil {
			return err
		}
		reflect.Copy(rv, fresh.Elem())
		return nil
	}

	elem := rv.Elem()
	elem.Set(reflect.Zero(elem.Type()))
	return c.Deserialize(data, target)
}

// CanRestoreInPlace reports whether v shares storage with its caller, so a
// callee's mutation of it is visible after the call: a non-nil pointer, map
// or slice.
func CanRestoreInPlace(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return false
}

// TypeName returns the Go type name recorded alongside a fragment.
func TypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// IsNil reports whether v is nil or a nil pointer, map, slice or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsNullPayload reports whether data encodes JSON null.
func IsNullPayload(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
