package query

import (
	"errors"
	"reflect"
	"strconv"
	"time"
)

// ErrMissingQualifier is matched by every QualifierError.
var ErrMissingQualifier = errors.New("query: missing qualifier")

// QualifierError reports a finder call without a usable qualifier value.
type QualifierError struct {
	Field string
}

// Error implements the error interface.
func (e *QualifierError) Error() string {
	return "query: missing qualifier for field " + strconv.Quote(e.Field)
}

// Is reports whether target is ErrMissingQualifier.
func (e *QualifierError) Is(target error) bool {
	return target == ErrMissingQualifier
}

// Resolve turns a field name and a caller supplied qualifier into a Filter.
// Scalars produce an Equals filter, slices and arrays an InSet filter.
// Nil, nil pointers, empty strings and empty collections fail with ErrMissingQualifier:
// a finder must never silently degrade into an unfiltered read.
func Resolve(field string, qualifier any) (Filter, error) {
	rv, ok := indirect(reflect.ValueOf(qualifier))
	if !ok {
		return Filter{}, &QualifierError{Field: field}
	}

	if isCollection(rv) {
		values := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, ok := indirect(rv.Index(i))
			if !ok {
				continue
			}
			values = append(values, normalize(ev))
		}
		if len(values) == 0 {
			return Filter{}, &QualifierError{Field: field}
		}
		return Filter{Field: field, Mode: InSet, Values: values}, nil
	}

	if (rv.Kind() == reflect.String || rv.Kind() == reflect.Slice) && rv.Len() == 0 {
		return Filter{}, &QualifierError{Field: field}
	}

	return Filter{Field: field, Mode: Equals, Value: normalize(rv)}, nil
}

// indirect unwraps interfaces and pointers. It reports false for nil.
func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

// isCollection reports whether rv is a set-valued qualifier. Byte slices and
// byte arrays (raw values, UUIDs) are scalars.
func isCollection(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

var timeType = reflect.TypeOf(time.Time{})

// normalize collapses named and sized scalar types into a small set of
// representations so equal values compare and encode equally.
func normalize(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= 1<<63-1 {
			return int64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice:
		// []byte and named byte slices
		return string(rv.Bytes())
	}

	if rv.Type() == timeType {
		return rv.Interface().(time.Time).UTC()
	}

	if rv.CanInterface() {
		return rv.Interface()
	}
	return nil
}
