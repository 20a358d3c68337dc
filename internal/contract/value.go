package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValidationError reports untyped data that does not match its schema.
type ValidationError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	if e.Actual == "" {
		return fmt.Sprintf("%s: expected %s", path, e.Expected)
	}
	return fmt.Sprintf("%s: expected %s, got %s", path, e.Expected, e.Actual)
}

// Decoder is implemented by every type that can be decoded from a Value.
type Decoder interface {
	DecodeValue(v Value) error
}

type decoderPtr[T any] interface {
	*T
	Decoder
}

// Decode parses data and decodes it structurally into a T.
// Unknown fields are ignored; missing required fields and type mismatches
// produce a *ValidationError naming the offending path.
func Decode[T any, PT decoderPtr[T]](data []byte) (T, error) {
	var out T
	v, err := Parse(data)
	if err != nil {
		return out, err
	}
	if err := PT(&out).DecodeValue(v); err != nil {
		return out, err
	}
	return out, nil
}

// Value is a node of parsed JSON together with its path from the root.
type Value struct {
	path string
	raw  any
}

// Parse turns raw JSON into a root Value. Empty input is treated as null.
func Parse(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{}, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, &ValidationError{Expected: "valid JSON", Actual: err.Error()}
	}
	return Value{raw: raw}, nil
}

// ValueOf wraps an already-parsed JSON node.
func ValueOf(path string, raw any) Value {
	return Value{path: path, raw: raw}
}

// Path returns the location of v, e.g. "photos[3].config".
func (v Value) Path() string {
	return v.path
}

// Raw returns the underlying parsed JSON node.
func (v Value) Raw() any {
	return v.raw
}

func (v Value) IsNull() bool {
	return v.raw == nil
}

func (v Value) mismatch(expected string) error {
	return &ValidationError{Path: v.path, Expected: expected, Actual: kindOf(v.raw)}
}

func (v Value) String() (string, error) {
	s, ok := v.raw.(string)
	if !ok {
		return "", v.mismatch("string")
	}
	return s, nil
}

func (v Value) Number() (float64, error) {
	n, ok := v.raw.(float64)
	if !ok {
		return 0, v.mismatch("number")
	}
	return n, nil
}

func (v Value) Bool() (bool, error) {
	b, ok := v.raw.(bool)
	if !ok {
		return false, v.mismatch("boolean")
	}
	return b, nil
}

// Array returns the elements of v, each carrying an indexed path.
func (v Value) Array() ([]Value, error) {
	items, ok := v.raw.([]any)
	if !ok {
		return nil, v.mismatch("array")
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Value{path: v.path + "[" + strconv.Itoa(i) + "]", raw: item}
	}
	return out, nil
}

func (v Value) Object() (Object, error) {
	fields, ok := v.raw.(map[string]any)
	if !ok {
		return Object{}, v.mismatch("object")
	}
	return Object{path: v.path, fields: fields}, nil
}

// DecodeList decodes every element of an array value.
func DecodeList[T any, PT decoderPtr[T]](v Value) ([]T, error) {
	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, item := range items {
		if err := PT(&out[i]).DecodeValue(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Object is a JSON object node.
type Object struct {
	path   string
	fields map[string]any
}

func (o Object) child(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

// Field returns the named field and whether it is present (null counts as present).
func (o Object) Field(key string) (Value, bool) {
	raw, ok := o.fields[key]
	return Value{path: o.child(key), raw: raw}, ok
}

// Require returns the named field or a missing-field error.
func (o Object) Require(key string) (Value, error) {
	v, ok := o.Field(key)
	if !ok {
		return v, &ValidationError{Path: v.path, Expected: "required field", Actual: "missing"}
	}
	return v, nil
}

// Optional returns the named field when it is present and not null.
func (o Object) Optional(key string) (Value, bool) {
	v, ok := o.Field(key)
	if !ok || v.IsNull() {
		return v, false
	}
	return v, true
}

func (o Object) String(key string) (string, error) {
	v, err := o.Require(key)
	if err != nil {
		return "", err
	}
	return v.String()
}

func (o Object) Bool(key string) (bool, error) {
	v, err := o.Require(key)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

func (o Object) Number(key string) (float64, error) {
	v, err := o.Require(key)
	if err != nil {
		return 0, err
	}
	return v.Number()
}

func (o Object) OptionalString(key string) (*string, error) {
	v, ok := o.Optional(key)
	if !ok {
		return nil, nil
	}
	s, err := v.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (o Object) OptionalNumber(key string) (*float64, error) {
	v, ok := o.Optional(key)
	if !ok {
		return nil, nil
	}
	n, err := v.Number()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// OptionalBool returns def when the field is absent or null.
func (o Object) OptionalBool(key string, def bool) (bool, error) {
	v, ok := o.Optional(key)
	if !ok {
		return def, nil
	}
	return v.Bool()
}

// StringList decodes a required array of strings.
func (o Object) StringList(key string) ([]string, error) {
	v, err := o.Require(key)
	if err != nil {
		return nil, err
	}
	return stringList(v)
}

// OptionalStringList decodes an array of strings; absent or null yields nil.
func (o Object) OptionalStringList(key string) ([]string, error) {
	v, ok := o.Optional(key)
	if !ok {
		return nil, nil
	}
	return stringList(v)
}

func stringList(v Value) ([]string, error) {
	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = item.String(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OptionalMap returns a free-form object field; absent or null yields nil.
func (o Object) OptionalMap(key string) (map[string]any, error) {
	v, ok := o.Optional(key)
	if !ok {
		return nil, nil
	}
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, v.mismatch("object")
	}
	return m, nil
}

func kindOf(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
