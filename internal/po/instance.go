package po

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gti/jenkins-acceptance/internal/driver"
)

// Constructors lists the functions able to build one page-area type. Each
// entry is a func returning T or (T, error).
type Constructors []any

// NewInstance invokes the first constructor whose arity equals len(args) and
// whose parameters accept every non-nil argument. A nil argument matches any
// parameter that can hold nil.
func NewInstance[T any](ctors Constructors, args ...any) (T, error) {
	var zero T
	target := reflect.TypeOf((*T)(nil)).Elem()

	for _, c := range ctors {
		fn := reflect.ValueOf(c)
		ft := fn.Type()
		if ft.Kind() != reflect.Func || ft.IsVariadic() || ft.NumIn() != len(args) {
			continue
		}
		if !returns(ft, target) {
			continue
		}

		in, ok := bind(ft, args)
		if !ok {
			continue
		}
		return call[T](fn, in, target)
	}

	return zero, fmt.Errorf("no matching constructor found in %s: %v", target, args)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func returns(ft, target reflect.Type) bool {
	switch ft.NumOut() {
	case 1:
		return ft.Out(0).AssignableTo(target)
	case 2:
		return ft.Out(0).AssignableTo(target) && ft.Out(1) == errorType
	}
	return false
}

func bind(ft reflect.Type, args []any) ([]reflect.Value, bool) {
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := ft.In(i)
		if a == nil {
			if !nillable(pt) {
				return nil, false
			}
			in[i] = reflect.Zero(pt)
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(pt) {
			return nil, false
		}
		in[i] = v
	}
	return in, true
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func call[T any](fn reflect.Value, in []reflect.Value, target reflect.Type) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to invoke a constructor of %s: %v", target, r)
		}
	}()

	res := fn.Call(in)
	if len(res) == 2 && !res[1].IsNil() {
		return out, fmt.Errorf("failed to invoke a constructor of %s: %w", target, res[1].Interface().(error))
	}
	if v, ok := res[0].Interface().(T); ok {
		out = v
	}
	return out, nil
}

// FindCaption tries each caption in order and returns the first non-zero
// result. Page areas are labelled differently across server versions, so
// callers pass every caption a control has been known by.
func FindCaption[R any](captions []string, find func(caption string) (R, error)) (R, error) {
	var zero R
	cause := fmt.Errorf("%w: none of the captions exists: %s", driver.ErrNoSuchElement, strings.Join(captions, ", "))

	for _, caption := range captions {
		out, err := find(caption)
		if err != nil {
			cause = err
			continue
		}
		if !isZeroValue(out) {
			return out, nil
		}
	}
	return zero, cause
}

// Resolve is FindCaption for actions with no result.
func Resolve(captions []string, do func(caption string) error) error {
	_, err := FindCaption(captions, func(caption string) (bool, error) {
		if err := do(caption); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

func isZeroValue[R any](v R) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// IsNotFound reports whether err means an element was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, driver.ErrNoSuchElement)
}
