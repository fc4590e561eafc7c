package oracle

import (
	"strconv"
	"strings"
)

// maxPlaceholders is the capacity of the bind-completeness bit vector.
const maxPlaceholders = 64

// outInfo records the null indicator and actual returned length of one OUT
// (or INOUT) bind. The native layer writes through these fields on execute,
// so each instance must stay at a stable address for the statement's
// lifetime.
type outInfo struct {
	dataSize  uint32
	indicator int16
	bindIndex int
}

// Params maps caller-supplied arguments onto a statement's placeholder
// slots. It is created on prepare for statements that declare placeholders
// and is absent otherwise.
type Params struct {
	api  nativeAPI
	stmt uintptr
	errh uintptr

	// Placeholder name index. Slots that repeat an earlier name are marked
	// in dup and carry no entry of their own: binding the canonical slot
	// covers them.
	idxs  map[string]int
	names []string
	dup   []bool

	// Per-slot bind buffers and indicators. The native layer holds their
	// addresses between bind and execute.
	bufs [][]byte
	inds []int16

	currentBinds uint64
	outs         []*outInfo
}

// newParams introspects the prepared statement's placeholders. Returns
// (nil, nil) when the statement has none.
func newParams(api nativeAPI, stmt, errh uintptr) (*Params, error) {
	names, dup, status := api.BindInfo(stmt, errh)
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) > maxPlaceholders {
		return nil, interfaceErr("statement declares %d placeholders, the limit is %d", len(names), maxPlaceholders)
	}

	idxs := make(map[string]int, len(names))
	for i, name := range names {
		if !dup[i] {
			idxs[name] = i
		}
	}
	return &Params{
		api:   api,
		stmt:  stmt,
		errh:  errh,
		idxs:  idxs,
		names: names,
		dup:   dup,
		bufs:  make([][]byte, len(names)),
		inds:  make([]int16, len(names)),
	}, nil
}

// count returns the number of declared placeholder slots.
func (p *Params) count() int {
	return len(p.names)
}

// indexOf resolves a placeholder name to its slot. The name is matched
// case-sensitively first, then uppercased as a fallback. The leading colon
// is optional.
func (p *Params) indexOf(name string) (int, error) {
	key := strings.TrimPrefix(name, ":")
	if ix, ok := p.idxs[key]; ok {
		return ix, nil
	}
	if ix, ok := p.idxs[strings.ToUpper(key)]; ok {
		return ix, nil
	}
	return 0, interfaceErr("statement does not define parameter placeholder :%s", key)
}

func (p *Params) checkIndex(idx int) error {
	if idx < 0 || idx >= len(p.names) {
		return interfaceErr("parameter position %d is out of range, statement declares %d placeholder(s)", idx+1, len(p.names))
	}
	return nil
}

// bindIn binds an IN value at the zero-based slot idx. data is kept alive
// in the slot's buffer until the next bind.
func (p *Params) bindIn(idx int, typ uint16, data []byte) error {
	if err := p.checkIndex(idx); err != nil {
		return err
	}
	p.currentBinds |= 1 << idx
	p.bufs[idx] = data
	p.inds[idx] = indNotNull
	status := p.api.BindByPos(p.stmt, p.errh, uint32(idx+1), typ, data, &p.inds[idx], nil)
	if !isSuccess(status) {
		return nativeErr(p.api, p.errh, status)
	}
	return nil
}

// bindNull binds a NULL indicator at the slot.
func (p *Params) bindNull(idx int, typ uint16) error {
	if err := p.checkIndex(idx); err != nil {
		return err
	}
	p.currentBinds |= 1 << idx
	p.bufs[idx] = nil
	p.inds[idx] = indNull
	status := p.api.BindByPos(p.stmt, p.errh, uint32(idx+1), typ, nil, &p.inds[idx], nil)
	if !isSuccess(status) {
		return nativeErr(p.api, p.errh, status)
	}
	return nil
}

// bindOut binds an OUT (or INOUT) buffer at the slot. dataLen is the length
// of the data currently in buf (zero for pure OUT). The declared capacity is
// len(buf); a zero capacity could never receive data and is rejected here,
// before execute.
func (p *Params) bindOut(idx int, typ uint16, buf []byte, dataLen int) error {
	if err := p.checkIndex(idx); err != nil {
		return err
	}
	if len(buf) == 0 {
		if idx < len(p.names) && p.names[idx] != "" {
			return interfaceErr("storage capacity of output variable :%s is 0", p.names[idx])
		}
		return interfaceErr("storage capacity of output variable %d is 0", idx+1)
	}
	p.currentBinds |= 1 << idx
	p.bufs[idx] = buf
	info := &outInfo{dataSize: uint32(dataLen), indicator: indNotNull, bindIndex: idx}
	p.outs = append(p.outs, info)
	status := p.api.BindByPos(p.stmt, p.errh, uint32(idx+1), typ, buf, &info.indicator, &info.dataSize)
	if !isSuccess(status) {
		return nativeErr(p.api, p.errh, status)
	}
	return nil
}

// bindArgs resolves and binds the argument list in caller order, then
// validates that every declared placeholder received a bind. The native
// layer may not reliably detect a missing bind on a reused prepared
// statement (stale bind state can mask the omission), so the gap check is
// done here, before execute is issued.
func (p *Params) bindArgs(args []ToSQL) error {
	p.currentBinds = 0
	p.outs = p.outs[:0]

	pos := 0
	for _, arg := range args {
		var err error
		pos, err = arg.bindTo(pos, p)
		if err != nil {
			return err
		}
	}

	var missing []string
	for i, name := range p.names {
		if p.dup[i] || p.currentBinds&(1<<i) != 0 {
			continue
		}
		if name != "" {
			missing = append(missing, ":"+name)
		} else {
			missing = append(missing, "#"+strconv.Itoa(i+1))
		}
	}
	if len(missing) > 0 {
		return interfaceErr("parameter placeholder(s) %s have not been bound", strings.Join(missing, ", "))
	}
	return nil
}

// writeBack walks the argument list after execution and lets each OUT
// argument consume its null flag and returned length.
func (p *Params) writeBack(args []ToSQL) error {
	pos := 0
	for _, arg := range args {
		var err error
		pos, err = arg.writeBack(pos, p)
		if err != nil {
			return err
		}
	}
	return nil
}

// outForSlot finds the OUT bookkeeping for a slot, nil when the slot was
// not bound as an output.
func (p *Params) outForSlot(idx int) *outInfo {
	for _, info := range p.outs {
		if info.bindIndex == idx {
			return info
		}
	}
	return nil
}

// OutIsNull reports whether the value returned for the OUT placeholder at
// the given position or name is NULL.
func (p *Params) OutIsNull(pos any) (bool, error) {
	idx, err := p.resolvePos(pos)
	if err != nil {
		return false, err
	}
	info := p.outForSlot(idx)
	if info == nil {
		return false, interfaceErr("parameter %v was not bound as an output", pos)
	}
	return info.indicator == indNull, nil
}

func (p *Params) resolvePos(pos any) (int, error) {
	switch v := pos.(type) {
	case int:
		if err := p.checkIndex(v); err != nil {
			return 0, err
		}
		return v, nil
	case string:
		return p.indexOf(v)
	default:
		return 0, interfaceErr("parameter position must be an int or a string, got %T", pos)
	}
}
