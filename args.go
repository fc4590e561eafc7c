package oracle

import (
	"encoding/binary"
	"math"
	"time"
)

// ToSQL is the capability interface for bindable arguments: report the
// native type tag and buffer to bind, and consume output metadata after
// execution. Concrete driver types implement it; arbitrary Go values are
// adapted through asArg. The binder drives a uniform loop over a sequence
// of these, so argument lists have open arity.
type ToSQL interface {
	// bindTo binds the value starting at the zero-based slot pos and
	// returns the slot for the next argument. Named arguments ignore pos
	// and resolve their own slot.
	bindTo(pos int, p *Params) (int, error)
	// writeBack mirrors bindTo's traversal after execution; OUT arguments
	// use it to resize and validate themselves from the returned length
	// and null flag.
	writeBack(pos int, p *Params) (int, error)
}

// Skip advances the positional cursor without binding anything. Use it to
// step over a slot that repeats an earlier placeholder name: the canonical
// bind already covers it.
var Skip ToSQL = skipArg{}

type skipArg struct{}

func (skipArg) bindTo(pos int, _ *Params) (int, error)    { return pos + 1, nil }
func (skipArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

// Null binds a NULL at its slot.
var Null ToSQL = nullArg{typ: sqltChr}

type nullArg struct{ typ uint16 }

func (a nullArg) bindTo(pos int, p *Params) (int, error) {
	if err := p.bindNull(pos, a.typ); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (nullArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type intArg int64

func (a intArg) bindTo(pos int, p *Params) (int, error) {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, uint64(int64(a)))
	if err := p.bindIn(pos, sqltInt, buf); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (intArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type uintArg uint64

func (a uintArg) bindTo(pos int, p *Params) (int, error) {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, uint64(a))
	if err := p.bindIn(pos, sqltUin, buf); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (uintArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type floatArg float64

func (a floatArg) bindTo(pos int, p *Params) (int, error) {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, math.Float64bits(float64(a)))
	if err := p.bindIn(pos, sqltBDouble, buf); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (floatArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type float32Arg float32

func (a float32Arg) bindTo(pos int, p *Params) (int, error) {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, math.Float32bits(float32(a)))
	if err := p.bindIn(pos, sqltBFloat, buf); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (float32Arg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type strArg string

func (a strArg) bindTo(pos int, p *Params) (int, error) {
	if err := p.bindIn(pos, sqltChr, []byte(a)); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (strArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type bytesArg []byte

func (a bytesArg) bindTo(pos int, p *Params) (int, error) {
	if err := p.bindIn(pos, sqltBin, []byte(a)); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (bytesArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

type timeArg time.Time

func (a timeArg) bindTo(pos int, p *Params) (int, error) {
	if err := p.bindIn(pos, sqltDat, encodeOCIDate(time.Time(a))); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

func (timeArg) writeBack(pos int, _ *Params) (int, error) { return pos + 1, nil }

// Named carries an explicit placeholder name for its value. The name is
// resolved case-sensitively first, then uppercased; the positional cursor
// continues from the slot after the resolved one.
type Named struct {
	Name  string
	Value any
}

func (a Named) bindTo(_ int, p *Params) (int, error) {
	idx, err := p.indexOf(a.Name)
	if err != nil {
		return 0, err
	}
	inner, err := asArg(a.Value)
	if err != nil {
		return 0, err
	}
	return inner.bindTo(idx, p)
}

func (a Named) writeBack(_ int, p *Params) (int, error) {
	idx, err := p.indexOf(a.Name)
	if err != nil {
		return 0, err
	}
	inner, err := asArg(a.Value)
	if err != nil {
		return 0, err
	}
	return inner.writeBack(idx, p)
}

// List expands into as many consecutive unnamed slots as it has elements,
// for IN-list style queries. The positional cursor for any following
// argument advances by len(list), not 1.
type List []any

func (a List) bindTo(pos int, p *Params) (int, error) {
	for _, v := range a {
		inner, err := asArg(v)
		if err != nil {
			return 0, err
		}
		pos, err = inner.bindTo(pos, p)
		if err != nil {
			return 0, err
		}
	}
	return pos, nil
}

func (a List) writeBack(pos int, p *Params) (int, error) {
	for _, v := range a {
		inner, err := asArg(v)
		if err != nil {
			return 0, err
		}
		pos, err = inner.writeBack(pos, p)
		if err != nil {
			return 0, err
		}
	}
	return pos, nil
}

// Out binds an output placeholder. Dest must be a pointer to string,
// int64, float64, []byte or time.Time; after execution the returned value
// is written through it, truncated to the actual returned length. Set In
// for INOUT placeholders to send the current *Dest value along. Size is
// the declared capacity in bytes for variable-width destinations; a
// capacity that works out to zero is rejected at bind time since it could
// never receive data.
type Out struct {
	Dest any
	In   bool
	Size int
}

func (a Out) bindTo(pos int, p *Params) (int, error) {
	switch d := a.Dest.(type) {
	case *string:
		capacity := a.Size
		if capacity < len(*d) {
			capacity = len(*d)
		}
		buf := make([]byte, capacity)
		dataLen := 0
		if a.In {
			dataLen = copy(buf, *d)
		}
		if err := p.bindOut(pos, sqltChr, buf, dataLen); err != nil {
			return 0, err
		}
	case *[]byte:
		capacity := a.Size
		if capacity < len(*d) {
			capacity = len(*d)
		}
		buf := make([]byte, capacity)
		dataLen := 0
		if a.In {
			dataLen = copy(buf, *d)
		}
		if err := p.bindOut(pos, sqltBin, buf, dataLen); err != nil {
			return 0, err
		}
	case *int64:
		buf := make([]byte, 8)
		binary.NativeEndian.PutUint64(buf, uint64(*d))
		if err := p.bindOut(pos, sqltInt, buf, 8); err != nil {
			return 0, err
		}
	case *float64:
		buf := make([]byte, 8)
		binary.NativeEndian.PutUint64(buf, math.Float64bits(*d))
		if err := p.bindOut(pos, sqltBDouble, buf, 8); err != nil {
			return 0, err
		}
	case *time.Time:
		if err := p.bindOut(pos, sqltDat, encodeOCIDate(*d), ociDateSize); err != nil {
			return 0, err
		}
	default:
		return 0, interfaceErr("unsupported output destination type %T", a.Dest)
	}
	return pos + 1, nil
}

func (a Out) writeBack(pos int, p *Params) (int, error) {
	info := p.outForSlot(pos)
	if info == nil {
		return pos + 1, nil
	}
	buf := p.bufs[pos]
	if info.indicator == indNull {
		switch d := a.Dest.(type) {
		case *string:
			*d = ""
		case *[]byte:
			*d = nil
		case *int64:
			*d = 0
		case *float64:
			*d = 0
		case *time.Time:
			*d = time.Time{}
		}
		return pos + 1, nil
	}
	n := int(info.dataSize)
	if n > len(buf) {
		n = len(buf)
	}
	switch d := a.Dest.(type) {
	case *string:
		*d = string(buf[:n])
	case *[]byte:
		*d = append((*d)[:0], buf[:n]...)
	case *int64:
		*d = int64(binary.NativeEndian.Uint64(buf))
	case *float64:
		*d = math.Float64frombits(binary.NativeEndian.Uint64(buf))
	case *time.Time:
		t, err := decodeOCIDate(buf)
		if err != nil {
			return 0, err
		}
		*d = t
	}
	return pos + 1, nil
}

// asArg adapts an arbitrary argument value to the ToSQL capability.
// Pointer types express optionals: a nil pointer binds NULL, a non-nil one
// binds the pointed-to value.
func asArg(v any) (ToSQL, error) {
	switch val := v.(type) {
	case nil:
		return Null, nil
	case ToSQL:
		return val, nil
	case int:
		return intArg(val), nil
	case int8:
		return intArg(val), nil
	case int16:
		return intArg(val), nil
	case int32:
		return intArg(val), nil
	case int64:
		return intArg(val), nil
	case uint:
		return uintArg(val), nil
	case uint8:
		return uintArg(val), nil
	case uint16:
		return uintArg(val), nil
	case uint32:
		return uintArg(val), nil
	case uint64:
		return uintArg(val), nil
	case float32:
		return float32Arg(val), nil
	case float64:
		return floatArg(val), nil
	case bool:
		if val {
			return intArg(1), nil
		}
		return intArg(0), nil
	case string:
		return strArg(val), nil
	case []byte:
		return bytesArg(val), nil
	case time.Time:
		return timeArg(val), nil
	case *int64:
		if val == nil {
			return nullArg{typ: sqltInt}, nil
		}
		return intArg(*val), nil
	case *float64:
		if val == nil {
			return nullArg{typ: sqltBDouble}, nil
		}
		return floatArg(*val), nil
	case *string:
		if val == nil {
			return nullArg{typ: sqltChr}, nil
		}
		return strArg(*val), nil
	case *[]byte:
		if val == nil {
			return nullArg{typ: sqltBin}, nil
		}
		return bytesArg(*val), nil
	case *time.Time:
		if val == nil {
			return nullArg{typ: sqltDat}, nil
		}
		return timeArg(*val), nil
	default:
		return nil, interfaceErr("unsupported argument type %T", v)
	}
}

func asArgs(args []any) ([]ToSQL, error) {
	out := make([]ToSQL, len(args))
	for i, a := range args {
		arg, err := asArg(a)
		if err != nil {
			return nil, err
		}
		out[i] = arg
	}
	return out, nil
}
