package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/shopspring/decimal"
)

// TypeMapping maps Go field types to OpenAPI type/format pairs.
type TypeMapping struct {
	Type     string // OpenAPI type: string, integer, number, boolean, object, array
	Format   string // OpenAPI format: int64, date-time, decimal, etc.
	Nullable bool
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
)

// MapGoType converts the type of a model field to an OpenAPI type mapping.
// Pointers and NullDecimal are nullable. Decimals are emitted as strings so
// that amounts keep their exact digits on the wire. Unknown types fall back
// to {"string", ""}.
func MapGoType(t reflect.Type) TypeMapping {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	switch t {
	case timeType:
		return TypeMapping{"string", "date-time", nullable}
	case decimalType:
		return TypeMapping{"string", "decimal", nullable}
	case nullDecimalType:
		return TypeMapping{"string", "decimal", true}
	}

	switch t.Kind() {
	case reflect.Int64, reflect.Uint64:
		return TypeMapping{"integer", "int64", nullable}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeMapping{"integer", "int32", nullable}
	case reflect.Float32:
		return TypeMapping{"number", "float", nullable}
	case reflect.Float64:
		return TypeMapping{"number", "double", nullable}
	case reflect.Bool:
		return TypeMapping{"boolean", "", nullable}
	case reflect.Slice, reflect.Array:
		return TypeMapping{"array", "", nullable}
	case reflect.Map, reflect.Struct, reflect.Interface:
		return TypeMapping{"object", "", nullable}
	}
	return TypeMapping{"string", "", nullable}
}

// structSchema builds an object schema from the json tags of a struct
// type. Fields tagged "-" are left out; non-nullable fields are required.
func structSchema(v any, descriptions map[string]string) *openapi3.SchemaRef {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	props := openapi3.Schemas{}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		m := MapGoType(f.Type)
		s := columnTypeSchema(m)
		s.Description = descriptions[name]
		props[name] = &openapi3.SchemaRef{Value: s}
		if !m.Nullable && !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   required,
		},
	}
}

func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type:     &openapi3.Types{m.Type},
		Nullable: m.Nullable,
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	// For array types, add items schema
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}
