package capture

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Constraint checks one property of a field value. Check may return a
// converted value (for example a parsed integer) that later constraints on the
// same field receive.
type Constraint struct {
	Check   func(value any) (any, bool)
	Message string
}

// Field declares a single input key and the constraints applied to it, in order.
type Field struct {
	Name        string
	Required    bool
	Prepare     func(value any) any
	Constraints []Constraint
}

// FieldSchema is an ordered list of field declarations.
type FieldSchema []Field

// FieldError is the first failure recorded for a field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects one failure per invalid field in schema order.
type ValidationError struct {
	Failures []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, ", ")
}

// Fields lists the names of the failing fields.
func (e *ValidationError) Fields() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Field)
	}
	return names
}

var captureSchema = FieldSchema{
	{
		Name:        "url",
		Required:    true,
		Prepare:     prepareURL,
		Constraints: []Constraint{IsURL()},
	},
	{Name: "format", Constraints: []Constraint{OneOf("png", "jpeg", "webp")}},
	{Name: "window_width", Constraints: []Constraint{IsInteger(), Min(320), Max(3840)}},
	{Name: "window_height", Constraints: []Constraint{IsInteger(), Min(320), Max(3840)}},
	{Name: "full_page", Constraints: []Constraint{IsBoolean()}},
	{Name: "dark_mode", Constraints: []Constraint{IsBoolean()}},
	{Name: "image_quality", Constraints: []Constraint{IsInteger(), Min(1), Max(100)}},
	{Name: "pixel_density", Constraints: []Constraint{IsNumeric(), Min(1), Max(3)}},
	{Name: "wait_for_timeout", Constraints: []Constraint{IsInteger(), Min(0), Max(30000)}},
	{Name: "wait_for_network", Constraints: []Constraint{OneOf("idle", "mostly_idle")}},
}

// Schema returns the capture request schema.
func Schema() FieldSchema {
	return captureSchema
}

// Validate evaluates every field against input and returns the converted
// values of the fields that were supplied. Keys not declared in the schema are
// ignored. All fields are checked before returning; only the first failing
// constraint per field is reported.
func (s FieldSchema) Validate(input map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(s))
	var failures []FieldError

	for _, field := range s {
		raw, present := input[field.Name]
		if present && field.Prepare != nil {
			raw = field.Prepare(raw)
		}
		if !present || raw == nil || raw == "" {
			if field.Required {
				failures = append(failures, FieldError{Field: field.Name, Message: "is required"})
				continue
			}
			if !present || raw == nil {
				continue
			}
		}

		value, msg, ok := field.check(raw)
		if !ok {
			failures = append(failures, FieldError{Field: field.Name, Message: msg})
			continue
		}
		values[field.Name] = value
	}

	if len(failures) > 0 {
		return nil, &ValidationError{Failures: failures}
	}
	return values, nil
}

func (f Field) check(value any) (any, string, bool) {
	for _, c := range f.Constraints {
		next, ok := c.Check(value)
		if !ok {
			return nil, c.Message, false
		}
		value = next
	}
	return value, "", true
}

func prepareURL(value any) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	return NormalizeURL(s)
}

// IsURL accepts absolute http(s) URLs with a host.
func IsURL() Constraint {
	return Constraint{
		Message: "must be a valid URL",
		Check: func(value any) (any, bool) {
			s, ok := value.(string)
			if !ok || strings.ContainsAny(s, " \t\r\n") {
				return nil, false
			}
			u, err := url.Parse(s)
			if err != nil || !u.IsAbs() || u.Hostname() == "" {
				return nil, false
			}
			// A colon after the host must introduce a numeric port.
			if strings.HasSuffix(u.Host, ":") {
				return nil, false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return nil, false
			}
			return s, true
		},
	}
}

// OneOf accepts a string equal to one of allowed.
func OneOf(allowed ...string) Constraint {
	return Constraint{
		Message: "must be one of " + strings.Join(allowed, ", "),
		Check: func(value any) (any, bool) {
			s, ok := value.(string)
			if !ok {
				return nil, false
			}
			for _, a := range allowed {
				if s == a {
					return s, true
				}
			}
			return nil, false
		},
	}
}

// IsInteger accepts whole numbers given as numbers or decimal strings and
// converts them to int64.
func IsInteger() Constraint {
	return Constraint{
		Message: "must be an integer",
		Check: func(value any) (any, bool) {
			switch v := value.(type) {
			case int:
				return int64(v), true
			case int64:
				return v, true
			case float64:
				if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
					return nil, false
				}
				return int64(v), true
			case json.Number:
				i, err := v.Int64()
				return i, err == nil
			case string:
				i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				return i, err == nil
			default:
				return nil, false
			}
		},
	}
}

// IsNumeric accepts finite numbers given as numbers or strings and converts
// them to float64.
func IsNumeric() Constraint {
	return Constraint{
		Message: "must be a number",
		Check: func(value any) (any, bool) {
			var f float64
			switch v := value.(type) {
			case int:
				f = float64(v)
			case int64:
				f = float64(v)
			case float64:
				f = v
			case json.Number:
				parsed, err := v.Float64()
				if err != nil {
					return nil, false
				}
				f = parsed
			case string:
				parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil {
					return nil, false
				}
				f = parsed
			default:
				return nil, false
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, false
			}
			return f, true
		},
	}
}

// IsBoolean accepts booleans and their common string and numeric spellings.
func IsBoolean() Constraint {
	return Constraint{
		Message: "must be true or false",
		Check: func(value any) (any, bool) {
			b, ok := CoerceBool(value)
			return b, ok
		},
	}
}

// CoerceBool converts true/false, 1/0, yes/no and on/off (case-insensitive)
// to a bool. ok is false when value has no definite truth value.
func CoerceBool(value any) (b bool, ok bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v == 1, v == 0 || v == 1
	case int64:
		return v == 1, v == 0 || v == 1
	case float64:
		return v == 1, v == 0 || v == 1
	case json.Number:
		return CoerceBool(v.String())
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true, true
		case "0", "false", "off", "no":
			return false, true
		}
	}
	return false, false
}

// Min accepts numeric values >= limit. It must follow IsInteger or IsNumeric.
func Min(limit float64) Constraint {
	return Constraint{
		Message: "must be at least " + formatLimit(limit),
		Check: func(value any) (any, bool) {
			f, ok := asFloat(value)
			return value, ok && f >= limit
		},
	}
}

// Max accepts numeric values <= limit. It must follow IsInteger or IsNumeric.
func Max(limit float64) Constraint {
	return Constraint{
		Message: "must not be greater than " + formatLimit(limit),
		Check: func(value any) (any, bool) {
			f, ok := asFloat(value)
			return value, ok && f <= limit
		},
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func formatLimit(limit float64) string {
	return strconv.FormatFloat(limit, 'f', -1, 64)
}
