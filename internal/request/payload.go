// Package request decodes JSON and form-encoded request bodies into a uniform
// field map and provides typed accessors over it.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/klingon-exchange/swapapi/internal/apierr"
)

// Payload is a decoded request body. Every field holds one or more values so
// that JSON scalars and repeated form keys are read the same way. A Payload
// is not modified after Decode returns.
type Payload struct {
	fields map[string][]interface{}
	isJSON bool
}

// Decode parses body as a JSON object when isJSON is set, otherwise as a
// URL-encoded form. An empty body yields an empty payload.
func Decode(body string, isJSON bool) (*Payload, error) {
	p := &Payload{fields: make(map[string][]interface{}), isJSON: isJSON}
	if strings.TrimSpace(body) == "" {
		return p, nil
	}
	if isJSON {
		return p, p.decodeJSON(body)
	}
	return p, p.decodeForm(body)
}

func (p *Payload) decodeJSON(body string) error {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return apierr.MalformedInput("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apierr.MalformedInput("invalid JSON body: trailing data")
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return apierr.MalformedInput("JSON body must be an object")
	}

	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			// null is treated as absent
		case []interface{}:
			for _, item := range val {
				if item != nil {
					p.fields[k] = append(p.fields[k], scalar(item))
				}
			}
		default:
			p.fields[k] = []interface{}{scalar(val)}
		}
	}
	return nil
}

// scalar keeps strings, bools and numbers as they are and re-encodes nested
// structures to their JSON text.
func scalar(v interface{}) interface{} {
	switch v.(type) {
	case string, bool, json.Number:
		return v
	default:
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(v)
		return strings.TrimSpace(buf.String())
	}
}

func (p *Payload) decodeForm(body string) error {
	values, err := url.ParseQuery(body)
	if err != nil {
		return apierr.MalformedInput("invalid form body: %v", err)
	}
	for k, vs := range values {
		for _, v := range vs {
			// Blank form values are dropped, so "addr_from=" reads as absent.
			if v == "" {
				continue
			}
			p.fields[k] = append(p.fields[k], v)
		}
	}
	return nil
}

// IsJSON reports whether the payload was decoded from JSON.
func (p *Payload) IsJSON() bool { return p.isJSON }

// Empty reports whether the payload has no fields.
func (p *Payload) Empty() bool { return len(p.fields) == 0 }

// Has reports whether name is present.
func (p *Payload) Has(name string) bool {
	return len(p.fields[name]) > 0
}

// Get returns the single logical value for name: the JSON scalar, or the first
// value of a form list.
func (p *Payload) Get(name string) (interface{}, error) {
	vs := p.fields[name]
	if len(vs) == 0 {
		return nil, apierr.MissingField(name)
	}
	return vs[0], nil
}

// Values returns every value for name as strings.
func (p *Payload) Values(name string) []string {
	vs := p.fields[name]
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, toString(v))
	}
	return out
}

// String returns the required field name as a string.
func (p *Payload) String(name string) (string, error) {
	v, err := p.Get(name)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// StringOr returns the field name as a string, or def when absent.
func (p *Payload) StringOr(name, def string) string {
	v, err := p.Get(name)
	if err != nil {
		return def
	}
	return toString(v)
}

// Bool returns the required field name coerced to a boolean.
func (p *Payload) Bool(name string) (bool, error) {
	v, err := p.Get(name)
	if err != nil {
		return false, err
	}
	return ToBool(v), nil
}

// BoolOr returns the field name coerced to a boolean, or def when absent.
func (p *Payload) BoolOr(name string, def bool) bool {
	v, err := p.Get(name)
	if err != nil {
		return def
	}
	return ToBool(v)
}

// Int returns the required field name as an integer.
func (p *Payload) Int(name string) (int, error) {
	v, err := p.Get(name)
	if err != nil {
		return 0, err
	}
	n, err := toInt(v)
	if err != nil {
		return 0, apierr.Validation("invalid %s: %v", name, err)
	}
	return n, nil
}

// IntOr returns the field name as an integer, or def when absent.
func (p *Payload) IntOr(name string, def int) (int, error) {
	if !p.Has(name) {
		return def, nil
	}
	return p.Int(name)
}

// ToBool coerces v to a boolean. Booleans pass through unchanged; strings
// "true", "1" and "yes" (any case) are true and everything else is false.
func ToBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	default:
		switch strings.ToLower(strings.TrimSpace(toString(val))) {
		case "true", "1", "yes":
			return true
		}
		return false
	}
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func toInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(val.String())
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", val)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", val)
	}
}
