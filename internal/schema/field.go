// Package schema implements the row/field validation used by the
// table helper and the field type union stored by dynamic workspaces:
// a small declarative descriptor checked against a concrete value.
package schema

import (
	"fmt"
	"sort"
)

// FieldKind is the tagged union of dynamic-workspace field types: id,
// text, integer, real, boolean, date, select, tags, json.
type FieldKind string

const (
	KindID      FieldKind = "id"
	KindText    FieldKind = "text"
	KindInteger FieldKind = "integer"
	KindReal    FieldKind = "real"
	KindBoolean FieldKind = "boolean"
	KindDate    FieldKind = "date"
	KindSelect  FieldKind = "select"
	KindTags    FieldKind = "tags"
	KindJSON    FieldKind = "json"
)

// FieldSpec describes one field of a row schema: its type, whether
// it's required or nullable, and an optional enum/tag vocabulary.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	Nullable bool
	Enum     []string // valid values for KindSelect; valid tag vocabulary for KindTags (empty = unrestricted)
	Default  any
}

// RowSchema is an ordered set of field specs describing one version of
// a table's row shape. The `id` field is implicit and always required.
type RowSchema struct {
	Fields []FieldSpec
}

// ValidationError carries one field's validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// Validate checks row (a decoded JSON object) against s, returning one
// ValidationError per problem found (nil if valid). Unknown extra keys
// on row are ignored — the schema only constrains the fields it names
// plus the always-required `id`.
func (s *RowSchema) Validate(row map[string]any) []ValidationError {
	var errs []ValidationError

	idVal, hasID := row["id"]
	if !hasID {
		errs = append(errs, ValidationError{Field: "id", Message: "required field is missing"})
	} else if s, ok := idVal.(string); !ok || s == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "must be a non-empty string"})
	}

	for _, f := range s.Fields {
		v, present := row[f.Name]
		if !present || v == nil {
			if f.Required && !f.Nullable {
				errs = append(errs, ValidationError{Field: f.Name, Message: "required field is missing"})
			}
			continue
		}
		if err := validateValue(f, v); err != "" {
			errs = append(errs, ValidationError{Field: f.Name, Message: err})
		}
	}
	return errs
}

// ValidateValue checks a single value against f, returning an error
// message ("" if valid). Exposed for the KV helper, which validates
// one declared key at a time rather than a whole row.
func ValidateValue(f FieldSpec, v any) string {
	return validateValue(f, v)
}

func validateValue(f FieldSpec, v any) string {
	switch f.Kind {
	case KindText, KindDate:
		if _, ok := v.(string); !ok {
			return "must be a string"
		}
	case KindInteger:
		switch n := v.(type) {
		case int, int64:
			_ = n
		case float64:
			if n != float64(int64(n)) {
				return "must be an integer"
			}
		default:
			return "must be a number"
		}
	case KindReal:
		switch v.(type) {
		case int, int64, float64:
		default:
			return "must be a number"
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
	case KindSelect:
		str, ok := v.(string)
		if !ok {
			return "must be a string"
		}
		if len(f.Enum) > 0 && !contains(f.Enum, str) {
			return fmt.Sprintf("must be one of %v", f.Enum)
		}
	case KindTags:
		list, ok := v.([]string)
		if !ok {
			if anyList, ok2 := v.([]any); ok2 {
				list = make([]string, 0, len(anyList))
				for _, item := range anyList {
					s, ok3 := item.(string)
					if !ok3 {
						return "tags must be strings"
					}
					list = append(list, s)
				}
			} else {
				return "must be a list of strings"
			}
		}
		if len(f.Enum) > 0 {
			for _, t := range list {
				if !contains(f.Enum, t) {
					return fmt.Sprintf("tag %q is not in the allowed vocabulary %v", t, f.Enum)
				}
			}
		}
	case KindID:
		str, ok := v.(string)
		if !ok || str == "" {
			return "must be a non-empty string"
		}
	case KindJSON:
		// any JSON-serializable value is acceptable
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// SortedFieldNames returns the field names sorted alphabetically, not
// in declaration order (Fields itself keeps declaration order).
func (s *RowSchema) SortedFieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}
