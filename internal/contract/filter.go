package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FilterKind is the closed set of image filters the editor can apply.
type FilterKind string

const (
	FilterBrightness FilterKind = "brightness"
	FilterSaturate   FilterKind = "saturate"
	FilterBlur       FilterKind = "blur"
	FilterContrast   FilterKind = "contrast"
	FilterSepia      FilterKind = "sepia"
	FilterGrayscale  FilterKind = "grayscale"
	FilterHueRotate  FilterKind = "hue-rotate"
	FilterInvert     FilterKind = "invert"
	FilterOpacity    FilterKind = "opacity"
)

// FilterKinds lists every kind in editor display order.
var FilterKinds = []FilterKind{
	FilterBrightness,
	FilterSaturate,
	FilterBlur,
	FilterContrast,
	FilterSepia,
	FilterGrayscale,
	FilterHueRotate,
	FilterInvert,
	FilterOpacity,
}

// Valid reports whether k is one of the known filter kinds.
func (k FilterKind) Valid() bool {
	switch k {
	case FilterBrightness, FilterSaturate, FilterBlur, FilterContrast, FilterSepia,
		FilterGrayscale, FilterHueRotate, FilterInvert, FilterOpacity:
		return true
	}
	return false
}

// Filter is one step of a photo's filter chain.
type Filter struct {
	Kind  FilterKind `json:"type"`
	Value float64    `json:"value"`
}

func (f *Filter) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	kindValue, err := obj.Require("type")
	if err != nil {
		return err
	}
	kind, err := kindValue.String()
	if err != nil {
		return err
	}
	if !FilterKind(kind).Valid() {
		return &ValidationError{
			Path:     kindValue.Path(),
			Expected: "one of " + joinKinds(),
			Actual:   strconv.Quote(kind),
		}
	}
	value, err := obj.Number("value")
	if err != nil {
		return err
	}
	f.Kind = FilterKind(kind)
	f.Value = value
	return nil
}

// CSS renders the filter as a CSS filter function.
func (f Filter) CSS() (string, error) {
	n := strconv.FormatFloat(f.Value, 'f', -1, 64)
	switch f.Kind {
	case FilterBrightness, FilterSaturate, FilterContrast, FilterSepia,
		FilterGrayscale, FilterInvert, FilterOpacity:
		return fmt.Sprintf("%s(%s)", f.Kind, n), nil
	case FilterBlur:
		return fmt.Sprintf("blur(%spx)", n), nil
	case FilterHueRotate:
		return fmt.Sprintf("hue-rotate(%sdeg)", n), nil
	default:
		return "", fmt.Errorf("unknown filter kind %q", f.Kind)
	}
}

func joinKinds() string {
	names := make([]string, len(FilterKinds))
	for i, k := range FilterKinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

// Transform is the optional geometric adjustment of a photo.
type Transform struct {
	Rotate *float64 `json:"rotate,omitempty"`
	Scale  *float64 `json:"scale,omitempty"`
	SkewX  *float64 `json:"skewX,omitempty"`
	SkewY  *float64 `json:"skewY,omitempty"`
}

func (t *Transform) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if t.Rotate, err = obj.OptionalNumber("rotate"); err != nil {
		return err
	}
	if t.Scale, err = obj.OptionalNumber("scale"); err != nil {
		return err
	}
	if t.SkewX, err = obj.OptionalNumber("skewX"); err != nil {
		return err
	}
	if t.SkewY, err = obj.OptionalNumber("skewY"); err != nil {
		return err
	}
	return nil
}

// CSS renders the transform as a CSS transform list.
func (t Transform) CSS() string {
	var parts []string
	if t.Rotate != nil {
		parts = append(parts, "rotate("+strconv.FormatFloat(*t.Rotate, 'f', -1, 64)+"deg)")
	}
	if t.Scale != nil {
		parts = append(parts, "scale("+strconv.FormatFloat(*t.Scale, 'f', -1, 64)+")")
	}
	if t.SkewX != nil {
		parts = append(parts, "skewX("+strconv.FormatFloat(*t.SkewX, 'f', -1, 64)+"deg)")
	}
	if t.SkewY != nil {
		parts = append(parts, "skewY("+strconv.FormatFloat(*t.SkewY, 'f', -1, 64)+"deg)")
	}
	return strings.Join(parts, " ")
}

// PhotoConfig is the editor state persisted with a photo. Filters compose in
// list order.
type PhotoConfig struct {
	Filters   []Filter   `json:"filters,omitempty"`
	Transform *Transform `json:"transform,omitempty"`
}

func (c *PhotoConfig) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	*c = PhotoConfig{}
	if filters, ok := obj.Optional("filters"); ok {
		if c.Filters, err = DecodeList[Filter](filters); err != nil {
			return err
		}
	}
	if tv, ok := obj.Optional("transform"); ok {
		var t Transform
		if err := t.DecodeValue(tv); err != nil {
			return err
		}
		c.Transform = &t
	}
	return nil
}

// decodeConfigField accepts either a structured config object or the legacy
// JSON-encoded string form. Absent or null yields nil.
func decodeConfigField(obj Object, key string) (*PhotoConfig, error) {
	v, ok := obj.Optional(key)
	if !ok {
		return nil, nil
	}

	var structured PhotoConfig
	structErr := structured.DecodeValue(v)
	if structErr == nil {
		return &structured, nil
	}

	encoded, err := v.String()
	if err != nil {
		return nil, structErr
	}
	var raw any
	if err := json.Unmarshal([]byte(encoded), &raw); err != nil {
		return nil, &ValidationError{Path: v.Path(), Expected: "object or JSON-encoded object", Actual: "malformed JSON string"}
	}
	var parsed PhotoConfig
	if err := parsed.DecodeValue(ValueOf(v.Path(), raw)); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// CSSFilter composes the filter chain in order.
func (c PhotoConfig) CSSFilter() (string, error) {
	parts := make([]string, 0, len(c.Filters))
	for _, f := range c.Filters {
		css, err := f.CSS()
		if err != nil {
			return "", err
		}
		parts = append(parts, css)
	}
	return strings.Join(parts, " "), nil
}

// WithFilter returns a copy of c where the filter of the given kind is set to
// value, appended at the end of the chain if not already present.
func (c PhotoConfig) WithFilter(kind FilterKind, value float64) PhotoConfig {
	out := c.Clone()
	for i := range out.Filters {
		if out.Filters[i].Kind == kind {
			out.Filters[i].Value = value
			return out
		}
	}
	out.Filters = append(out.Filters, Filter{Kind: kind, Value: value})
	return out
}

// Clone returns a deep copy of c.
func (c PhotoConfig) Clone() PhotoConfig {
	out := PhotoConfig{}
	if c.Filters != nil {
		out.Filters = append([]Filter(nil), c.Filters...)
	}
	if c.Transform != nil {
		t := Transform{
			Rotate: cloneFloat(c.Transform.Rotate),
			Scale:  cloneFloat(c.Transform.Scale),
			SkewX:  cloneFloat(c.Transform.SkewX),
			SkewY:  cloneFloat(c.Transform.SkewY),
		}
		out.Transform = &t
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
