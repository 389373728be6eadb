package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedField is returned when a profile field holds a shape no coercion accepts.
// Missing or empty data is never malformed.
var ErrMalformedField = errors.New("malformed field")

// CanonicalIDThreshold separates lookup-table industry IDs from ad-hoc IDs derived from
// creation timestamps. It is only consulted for entries that carry no explicit tag and
// are unknown to the catalog.
const CanonicalIDThreshold int64 = 1_000_000_000

// IndustryRef is one industry entry after coercion.
type IndustryRef struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	Canonical bool   `json:"canonical"`
}

// Range is a numeric interval; a nil bound is absent.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) Empty() bool { return r.Min == nil && r.Max == nil }

func malformed(field, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedField, field, fmt.Sprintf(format, args...))
}

// decodeRaw parses a raw field. Absent values and JSON null decode to nil. A JSON string
// that itself holds a JSON array or object is decoded once more.
func decodeRaw(field string, raw json.RawMessage) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, malformed(field, "not valid JSON")
	}
	if s, ok := v.(string); ok {
		inner := strings.TrimSpace(s)
		if strings.HasPrefix(inner, "[") || strings.HasPrefix(inner, "{") {
			if nested, err := decodeJSON([]byte(inner)); err == nil {
				return nested, nil
			}
			return nil, malformed(field, "string holds invalid JSON")
		}
		return inner, nil
	}
	return v, nil
}

func decodeJSON(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data")
	}
	return v, nil
}

// splitList breaks a free-text list ("a, b; c") into trimmed, non-empty items.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- industries ---

type industryEntry struct {
	id   int64
	name string
	tag  *bool
}

// CoerceIndustries accepts a list (or single value) of raw IDs, numeric strings, free-text
// names or {id, name, canonical|kind} objects. Names and canonical tags missing from the
// entry are filled from the catalog.
func CoerceIndustries(field string, raw json.RawMessage, catalog IndustryCatalog) ([]IndustryRef, error) {
	v, err := decodeRaw(field, raw)
	if err != nil || v == nil {
		return nil, err
	}

	var entries []industryEntry
	switch t := v.(type) {
	case []interface{}:
		for _, el := range t {
			e, ok, err := industryFromValue(field, el)
			if err != nil {
				return nil, err
			}
			if ok {
				entries = append(entries, e)
			}
		}
	case string:
		for _, part := range splitList(t) {
			e, _, _ := industryFromValue(field, part)
			entries = append(entries, e)
		}
	default:
		e, ok, err := industryFromValue(field, t)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}

	refs := make([]IndustryRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, resolveIndustry(e, catalog))
	}
	return refs, nil
}

func industryFromValue(field string, v interface{}) (industryEntry, bool, error) {
	switch t := v.(type) {
	case nil:
		return industryEntry{}, false, nil
	case json.Number:
		id, err := t.Int64()
		if err != nil {
			return industryEntry{}, false, malformed(field, "industry id %q is not an integer", t.String())
		}
		return industryEntry{id: id}, true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return industryEntry{}, false, nil
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return industryEntry{id: id}, true, nil
		}
		return industryEntry{name: s}, true, nil
	case map[string]interface{}:
		var e industryEntry
		for _, key := range []string{"id", "industry_id"} {
			raw, ok := t[key]
			if !ok || raw == nil {
				continue
			}
			id, err := scalarInt(raw)
			if err != nil {
				return industryEntry{}, false, malformed(field, "%s: %v", key, err)
			}
			e.id = id
			break
		}
		for _, key := range []string{"name", "label", "title"} {
			if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
				e.name = strings.TrimSpace(s)
				break
			}
		}
		if b, ok := t["canonical"].(bool); ok {
			e.tag = &b
		} else if kind, ok := t["kind"].(string); ok {
			switch strings.ToLower(kind) {
			case "canonical":
				e.tag = boolPtr(true)
			case "adhoc", "ad-hoc", "custom":
				e.tag = boolPtr(false)
			}
		}
		if e.id == 0 && e.name == "" {
			return industryEntry{}, false, nil
		}
		return e, true, nil
	default:
		return industryEntry{}, false, malformed(field, "unsupported industry entry of type %T", v)
	}
}

func resolveIndustry(e industryEntry, catalog IndustryCatalog) IndustryRef {
	ref := IndustryRef{ID: e.id, Name: e.name}
	var known bool
	if e.id != 0 && catalog != nil {
		if ind, ok := catalog.Lookup(e.id); ok {
			known = true
			if ref.Name == "" {
				ref.Name = ind.Name
			}
			if e.tag == nil {
				ref.Canonical = ind.Canonical
			}
		}
	}
	switch {
	case e.tag != nil:
		ref.Canonical = *e.tag
	case known:
	case e.id > 0:
		ref.Canonical = e.id < CanonicalIDThreshold
	}
	return ref
}

// --- countries ---

// CoerceCountryIDs accepts raw IDs, {id} or {country_id} objects, alone or in a list,
// and delimited strings such as "12, 15".
func CoerceCountryIDs(field string, raw json.RawMessage) ([]string, error) {
	v, err := decodeRaw(field, raw)
	if err != nil || v == nil {
		return nil, err
	}
	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case string:
		for _, part := range splitList(t) {
			items = append(items, part)
		}
	default:
		items = []interface{}{v}
	}
	var out []string
	seen := make(map[string]bool)
	for _, el := range items {
		id, err := countryIDFromValue(field, el)
		if err != nil {
			return nil, err
		}
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// CoerceCountryID is CoerceCountryIDs for a single-valued field; the first ID wins.
func CoerceCountryID(field string, raw json.RawMessage) (string, error) {
	ids, err := CoerceCountryIDs(field, raw)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

func countryIDFromValue(field string, v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case json.Number:
		return normalizeNumericID(t.String()), nil
	case string:
		return normalizeNumericID(strings.TrimSpace(t)), nil
	case map[string]interface{}:
		for _, key := range []string{"id", "country_id"} {
			if inner, ok := t[key]; ok && inner != nil {
				switch inner.(type) {
				case json.Number, string:
					return countryIDFromValue(field, inner)
				default:
					return "", malformed(field, "%s has unsupported type %T", key, inner)
				}
			}
		}
		return "", nil
	default:
		return "", malformed(field, "unsupported country entry of type %T", v)
	}
}

// normalizeNumericID maps "12", "12.0" and "012" to "12"; other strings pass through.
func normalizeNumericID(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// --- ranges ---

// CoerceRange accepts {min,max} objects or positional [min,max] lists. Bounds may be
// numbers or numeric strings ("1,000,000" included). A bare number is a point range.
func CoerceRange(field string, raw json.RawMessage) (Range, error) {
	v, err := decodeRaw(field, raw)
	if err != nil || v == nil {
		return Range{}, err
	}
	var lo, hi interface{}
	switch t := v.(type) {
	case map[string]interface{}:
		lo = firstKey(t, "min", "minimum", "from")
		hi = firstKey(t, "max", "maximum", "to")
	case []interface{}:
		if len(t) > 0 {
			lo = t[0]
		}
		if len(t) > 1 {
			hi = t[1]
		}
	case json.Number, string:
		lo, hi = t, t
	default:
		return Range{}, malformed(field, "unsupported range of type %T", v)
	}

	var r Range
	if r.Min, err = rangeBound(field, lo); err != nil {
		return Range{}, err
	}
	if r.Max, err = rangeBound(field, hi); err != nil {
		return Range{}, err
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r, nil
}

func firstKey(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func rangeBound(field string, v interface{}) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, malformed(field, "bound %q", t.String())
		}
		return &f, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, malformed(field, "bound %q is not numeric", t)
		}
		return &f, nil
	default:
		return nil, malformed(field, "unsupported bound of type %T", v)
	}
}

// --- free-text lists ---

// CoerceStrings accepts a list of strings (or {name|label|value} objects) or a single
// delimited string.
func CoerceStrings(field string, raw json.RawMessage) ([]string, error) {
	v, err := decodeRaw(field, raw)
	if err != nil || v == nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return splitList(t), nil
	case []interface{}:
		var out []string
		for _, el := range t {
			s, err := stringFromValue(field, el)
			if err != nil {
				return nil, err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		s, err := stringFromValue(field, t)
		if err != nil || s == "" {
			return nil, err
		}
		return []string{s}, nil
	}
}

func stringFromValue(field string, v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case map[string]interface{}:
		for _, key := range []string{"name", "label", "value"} {
			if s, ok := t[key].(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
		return "", nil
	default:
		return "", malformed(field, "unsupported list entry of type %T", v)
	}
}

func scalarInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func boolPtr(b bool) *bool { return &b }
