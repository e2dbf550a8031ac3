package discovery

import (
	"fmt"
	"math"
	"reflect"
)

// Bind returns a function invoking the test method on group. The function
// converts its arguments to the method's parameter types and splits the
// method's results into a return value and an error. A panic inside the
// method is not recovered.
func (c Case) Bind(group any) func(args ...any) (any, error) {
	m := reflect.ValueOf(group).MethodByName(c.Name)
	return func(args ...any) (any, error) {
		if !m.IsValid() {
			return nil, fmt.Errorf("test method %s not found on %T", c.Name, group)
		}
		in, err := arguments(m.Type(), args)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", c.Name, err)
		}
		return results(m.Call(in))
	}
}

func arguments(mt reflect.Type, args []any) ([]reflect.Value, error) {
	n := mt.NumIn()
	switch {
	case mt.IsVariadic() && len(args) < n-1:
		return nil, fmt.Errorf("want at least %d arguments, got %d", n-1, len(args))
	case !mt.IsVariadic() && len(args) != n:
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := paramType(mt, i)
		v, err := convert(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func paramType(mt reflect.Type, i int) reflect.Type {
	last := mt.NumIn() - 1
	if mt.IsVariadic() && i >= last {
		return mt.In(last).Elem()
	}
	return mt.In(i)
}

func convert(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch to.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", to)
	}
	v := reflect.ValueOf(arg)
	switch {
	case v.Type().AssignableTo(to):
		return v, nil
	case isNumeric(v.Kind()) && isNumeric(to.Kind()) && fits(v, to):
		return v.Convert(to), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, to)
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// fits reports whether the numeric value v converts to type to without
// wrapping, truncating or dropping a fractional part.
func fits(v reflect.Value, to reflect.Type) bool {
	target := reflect.New(to).Elem()
	switch {
	case v.CanInt():
		i := v.Int()
		switch {
		case target.CanInt():
			return !target.OverflowInt(i)
		case target.CanUint():
			return i >= 0 && !target.OverflowUint(uint64(i))
		default:
			return !target.OverflowFloat(float64(i))
		}
	case v.CanUint():
		u := v.Uint()
		switch {
		case target.CanInt():
			return u <= math.MaxInt64 && !target.OverflowInt(int64(u))
		case target.CanUint():
			return !target.OverflowUint(u)
		default:
			return !target.OverflowFloat(float64(u))
		}
	default:
		f := v.Float()
		switch {
		case target.CanFloat():
			return !target.OverflowFloat(f)
		case f != math.Trunc(f):
			return false
		case target.CanInt():
			return f >= math.MinInt64 && f < math.MaxInt64 && !target.OverflowInt(int64(f))
		default:
			return f >= 0 && f < math.MaxUint64 && !target.OverflowUint(uint64(f))
		}
	}
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
