// Package script implements the small expression language that performance
// programs are written in: const/let declarations, calls, member access,
// arrow functions and literals, evaluated as a function body against
// exactly one namespace parameter. There is deliberately no ambient access
// to the host environment; everything a program can reach must be handed to
// EvalBody explicitly.
package script

import (
	"fmt"
	"strconv"
)

type (
	// Value is a runtime value: nil (null), bool, float64, string, *Array,
	// *Dict, or anything implementing Callable or Object.
	Value = any

	// Callable is anything user code can invoke: native constructors and
	// methods as well as user-defined arrow functions.
	Callable interface {
		Call(args []Value) (Value, error)
	}

	// Object is anything with named members.
	Object interface {
		Member(name string) (Value, bool)
	}

	// MemberSetter is implemented by objects with assignable members.
	MemberSetter interface {
		SetMember(name string, v Value) error
	}

	// Array is a mutable list value.
	Array struct {
		Elems []Value
	}

	// Dict is a string-keyed object literal value.
	Dict struct {
		Entries map[string]Value
	}

	// NativeFunc adapts a Go function into a Callable.
	NativeFunc func(args []Value) (Value, error)

	// Error is a runtime or parse error with a 1-based source line.
	Error struct {
		Line int
		Msg  string
	}
)

func (f NativeFunc) Call(args []Value) (Value, error) { return f(args) }

func (d *Dict) Member(name string) (Value, bool) {
	v, ok := d.Entries[name]
	return v, ok
}

func (d *Dict) SetMember(name string, v Value) error {
	if d.Entries == nil {
		d.Entries = make(map[string]Value)
	}
	d.Entries[name] = v
	return nil
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func errAt(line int, format string, args ...any) *Error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Number extracts a float64 from a numeric value.
func Number(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Truthy follows the scripting-language convention: null, false, 0 and ""
// are falsy, everything else truthy.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

// ToString renders a value the way the language prints it.
func ToString(v Value) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case *Array:
		s := "["
		for i, e := range t.Elems {
			if i > 0 {
				s += ", "
			}
			s += ToString(e)
		}
		return s + "]"
	}
	return fmt.Sprintf("%v", v)
}
