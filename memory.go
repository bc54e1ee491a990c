package main

//
// The memory region manager.  One flat buffer, four adjoining zones:
// program text from txttab, scalar variables from vartab, arrays
// from arytab to strend, and the string heap growing down from
// memsiz to fretop.  The gap between strend and fretop is the only
// free space; any operation that would make two boundaries cross
// fails with out-of-memory instead of borrowing from a neighbor
//

func newMachine(size, width int) *machine {

	m := &machine{}

	m.mem = make([]byte, size)
	m.memsiz = size
	m.fretop = size

	m.txttab = programOrg
	m.out.width = width

	initRndState(&m.rng)

	m.scratchProgram()
	m.clearState()

	m.runState = stateHalted
	m.curPos = textPos{line: directLine}

	return m
}

//
// Throw away the program: the zone shrinks to just the two byte
// null link terminator
//

func (m *machine) scratchProgram() {

	m.wr16(m.txttab, 0)
	m.vartab = m.txttab + 2

	m.clearState()
}

//
// Clear everything downstream of the program: variables, arrays,
// the string heap, both control stacks, the DATA cursor and the
// user function table.  This is the bulk-destruction lifecycle NEW,
// CLEAR and RUN share
//

func (m *machine) clearState() {

	m.arytab = m.vartab
	m.strend = m.vartab
	m.fretop = m.memsiz

	m.forStack = m.forStack[:0]
	m.gosubStack = m.gosubStack[:0]
	m.fns = m.fns[:0]
	m.temps = m.temps[:0]

	m.dataPos = textPos{}
	m.dataFresh = false
	m.cond = errNone
	m.contPos = textPos{line: directLine}
}

//
// 16-bit little endian accessors, the way everything in the buffer
// is laid out
//

func (m *machine) rd16(off int) int {

	return int(m.mem[off]) | int(m.mem[off+1])<<8
}

func (m *machine) wr16(off, v int) {

	m.mem[off] = byte(v)
	m.mem[off+1] = byte(v >> 8)
}

//
// Open a gap of n bytes at offset at, shifting everything up through
// strend.  Used by program edits and variable creation; fails when
// the move would cross into the string heap even after a collection
//

func (m *machine) insertGap(at, n int) errCode {

	if m.strend+n > m.fretop {
		m.collect()

		if m.strend+n > m.fretop {
			return errOM
		}
	}

	copy(m.mem[at+n:m.strend+n], m.mem[at:m.strend])

	return errNone
}

func (m *machine) deleteGap(at, n int) {

	copy(m.mem[at:], m.mem[at+n:m.strend])
}

//
// Program zone.  Each line is [link.2][lineno.2][tokens...][0], kept
// in strictly ascending line number order, with a null link as the
// zone terminator.  The links are absolute buffer offsets
//

//
// Find the line with the given number.  If it does not exist, the
// returned offset is where it would be inserted
//

func (m *machine) findLine(n int) (int, bool) {

	off := m.txttab

	for {
		link := m.rd16(off)
		if link == 0 {
			return off, false
		}

		ln := m.rd16(off + 2)
		if ln == n {
			return off, true
		} else if ln > n {
			return off, false
		}

		off = link
	}
}

//
// Rebuild every forward link by scanning for the line terminator
// bytes.  Any edit that moves program text calls this afterward
//

func (m *machine) fixLinks() {

	p := m.txttab

	for p < m.vartab-2 {
		q := p + 4
		for m.mem[q] != 0 {
			q++
		}

		m.wr16(p, q+1)
		p = q + 1
	}
}

//
// Insert, replace or delete one program line.  An empty statement
// body deletes.  Every edit invalidates all downstream state, so the
// variable and array zones are reset afterward
//

func (m *machine) upsertLine(n int, tokens []byte) errCode {

	off, exists := m.findLine(n)

	if exists {
		lineLen := m.rd16(off) - off
		m.deleteGap(off, lineLen)
		m.vartab -= lineLen
		m.strend -= lineLen
		m.fixLinks()
	}

	if len(tokens) != 0 {
		need := 4 + len(tokens) + 1

		off, _ = m.findLine(n)

		if err := m.insertGap(off, need); err != errNone {
			return err
		}

		m.vartab += need
		m.strend += need

		m.wr16(off+2, n)
		copy(m.mem[off+4:], tokens)
		m.mem[off+4+len(tokens)] = 0

		m.fixLinks()
	}

	m.clearState()

	return errNone
}

//
// Scalar variable zone: fixed six byte entries, two name bytes and a
// four byte value slot, appended in creation order and looked up by
// linear scan.  The original trades lookup speed for simplicity and
// so do we; variable counts are small
//

func (m *machine) findVar(name [2]byte) (int, bool) {

	for off := m.vartab; off < m.arytab; off += varEntrySize {
		if m.mem[off] == name[0] && m.mem[off+1] == name[1] {
			return off, true
		}
	}

	return 0, false
}

//
// Look up a scalar, creating it with a zero value on first
// reference.  Creation shifts the array zone up by one entry
//

func (m *machine) lookupVar(name [2]byte) (int, errCode) {

	if off, ok := m.findVar(name); ok {
		return off, errNone
	}

	off := m.arytab

	if err := m.insertGap(off, varEntrySize); err != errNone {
		return 0, err
	}

	m.arytab += varEntrySize
	m.strend += varEntrySize

	m.mem[off] = name[0]
	m.mem[off+1] = name[1]

	for i := 0; i < valueSize; i++ {
		m.mem[off+2+i] = 0
	}

	return off, errNone
}

func isStrName(name [2]byte) bool {

	return name[1]&strNameTag != 0
}

//
// Value slot accessors.  A slot is either a packed MBF number or a
// string descriptor [len][0][off.lo][off.hi]
//

func (m *machine) loadNum(slot int) mflt {

	return unpackFlt(m.mem[slot : slot+4])
}

func (m *machine) storeNum(slot int, f mflt) {

	packFlt(f, m.mem[slot:slot+4])
}

func (m *machine) loadDesc(slot int) strDesc {

	return strDesc{ln: m.mem[slot], off: m.rd16(slot + 2)}
}

func (m *machine) storeDesc(slot int, d strDesc) {

	m.mem[slot] = d.ln
	m.mem[slot+1] = 0
	m.wr16(slot+2, d.off)
}

//
// Array zone.  Entry layout: two name bytes, a two byte total entry
// size, a dimension count, a two byte element count per dimension,
// then the value slots.  Arrays may be sized exactly once; an array
// first touched by a plain reference gets the implicit extent of 10
// per dimension
//

func (m *machine) findArray(name [2]byte) (int, bool) {

	p := m.arytab

	for p < m.strend {
		if m.mem[p] == name[0] && m.mem[p+1] == name[1] {
			return p, true
		}

		p += m.rd16(p + 2)
	}

	return 0, false
}

func (m *machine) createArray(name [2]byte, extents []int) (int, errCode) {

	basicAssert(len(extents) == 1 || len(extents) == 2, "Bad dimension count")

	if _, ok := m.findArray(name); ok {
		return 0, errDD
	}

	elems := 1
	for _, e := range extents {
		if e < 0 || e > 32767 {
			return 0, errBS
		}
		elems *= e + 1
	}

	total := 5 + 2*len(extents) + valueSize*elems

	if m.strend+total > m.fretop {
		m.collect()

		if m.strend+total > m.fretop {
			return 0, errOM
		}
	}

	off := m.strend

	m.mem[off] = name[0]
	m.mem[off+1] = name[1]
	m.wr16(off+2, total)
	m.mem[off+4] = byte(len(extents))

	for i, e := range extents {
		m.wr16(off+5+2*i, e+1)
	}

	dataOff := off + 5 + 2*len(extents)
	for i := dataOff; i < off+total; i++ {
		m.mem[i] = 0
	}

	m.strend += total

	return off, errNone
}

//
// Resolve an array element to its value slot offset, creating the
// array with implicit extents if this is its first reference
//

func (m *machine) arrayElem(name [2]byte, subs []int) (int, errCode) {

	entry, ok := m.findArray(name)

	if !ok {
		extents := make([]int, len(subs))
		for i := range extents {
			extents[i] = maxImplicitSubscript
		}

		var err errCode
		if entry, err = m.createArray(name, extents); err != errNone {
			return 0, err
		}
	}

	ndims := int(m.mem[entry+4])
	if ndims != len(subs) {
		return 0, errBS
	}

	idx := 0

	for i, sub := range subs {
		count := m.rd16(entry + 5 + 2*i)
		if sub < 0 || sub >= count {
			return 0, errBS
		}

		idx = idx*count + sub
	}

	return entry + 5 + 2*ndims + valueSize*idx, errNone
}

//
// PEEK and POKE: the whole buffer is addressable, bounds checked
// against the total size only.  A program is free to read or corrupt
// any zone, exactly as on the original hardware
//

func (m *machine) peek(addr int) (int, errCode) {

	if addr < 0 || addr >= len(m.mem) {
		return 0, errFC
	}

	return int(m.mem[addr]), errNone
}

func (m *machine) poke(addr, val int) errCode {

	if addr < 0 || addr >= len(m.mem) {
		return errFC
	}

	if val < 0 || val > 255 {
		return errFC
	}

	m.mem[addr] = byte(val)

	return errNone
}

//
// Bytes left in the free gap, for FRE()
//

func (m *machine) freeSpace() int {

	return m.fretop - m.strend
}
