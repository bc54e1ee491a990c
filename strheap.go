package main

import (
	"sort"
)

//
// The string heap.  Strings are stored bottomless: the heap grows
// downward from memsiz, fretop marks its low edge, and a descriptor
// is just a length and a buffer offset.  Assignments always copy, so
// the only way to reclaim space is the compacting collector below
//

//
// Carve n bytes off the heap, collecting once if the free gap is too
// small.  Zero length strings get a null descriptor and no storage
//

func (m *machine) allocString(n int) (strDesc, errCode) {

	if n == 0 {
		return strDesc{}, errNone
	}

	if m.fretop-n < m.strend {
		m.collect()

		if m.fretop-n < m.strend {
			return strDesc{}, errOS
		}
	}

	m.fretop -= n

	return strDesc{off: m.fretop, ln: byte(n)}, errNone
}

//
// Build a heap string from native bytes.  The result is pushed on
// the temporary descriptor list so a collection triggered before the
// value reaches a variable slot still sees it as live
//

func (m *machine) makeString(b []byte) (strDesc, errCode) {

	if len(b) > maxStringLen {
		return strDesc{}, errLS
	}

	d, err := m.allocString(len(b))
	if err != errNone {
		return strDesc{}, err
	}

	copy(m.mem[d.off:], b)
	m.temps = append(m.temps, d)

	return d, errNone
}

func (m *machine) strBytes(d strDesc) []byte {

	return m.mem[d.off : d.off+int(d.ln)]
}

//
// Drop the temporary descriptors accumulated during one statement.
// Called once the statement's values have all reached their homes
//

func (m *machine) releaseTemps() {

	m.temps = m.temps[:0]
	m.guards = m.guards[:0]
}

//
// Pin a descriptor that lives in a Go local for the duration of a
// call that may allocate.  The collector rewrites pinned descriptors
// through the pointer, so the local stays valid across a compaction.
// Pins nest; error paths that bail without unpinning are cleaned up
// by releaseTemps at the end of the statement
//

func (m *machine) guard(d *strDesc) {

	m.guards = append(m.guards, d)
}

func (m *machine) unguard() {

	m.guards = m.guards[:len(m.guards)-1]
}

//
// The compacting collector.  Mark phase: walk every place a string
// descriptor can live (scalar slots, array slots, the temporary
// list, pinned locals) and remember the ones pointing into the
// heap.  Compact
// phase: slide the live bodies back up against memsiz in descending
// offset order and rewrite every descriptor.  Descriptors sharing an
// identical body keep sharing it afterward
//

type strRef struct {
	slot  int      // value slot offset in mem, or -1
	temp  int      // index into m.temps when slot is -1
	guard *strDesc // pinned Go local when slot and temp are -1
	dsc   strDesc
}

func (m *machine) collect() {

	var refs []strRef

	addRef := func(slot, temp int, g *strDesc, d strDesc) {
		if d.ln != 0 && d.off >= m.fretop && d.off < m.memsiz {
			refs = append(refs, strRef{slot: slot, temp: temp, guard: g, dsc: d})
		}
	}

	for off := m.vartab; off < m.arytab; off += varEntrySize {
		name := [2]byte{m.mem[off], m.mem[off+1]}
		if isStrName(name) {
			addRef(off+2, -1, nil, m.loadDesc(off+2))
		}
	}

	p := m.arytab
	for p < m.strend {
		total := m.rd16(p + 2)

		name := [2]byte{m.mem[p], m.mem[p+1]}
		if isStrName(name) {
			ndims := int(m.mem[p+4])
			slot := p + 5 + 2*ndims

			for ; slot < p+total; slot += valueSize {
				addRef(slot, -1, nil, m.loadDesc(slot))
			}
		}

		p += total
	}

	for i, d := range m.temps {
		addRef(-1, i, nil, d)
	}

	for _, g := range m.guards {
		addRef(-1, -1, g, *g)
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].dsc.off > refs[j].dsc.off
	})

	top := m.memsiz
	prev := strDesc{off: -1}
	prevNew := 0

	for i := range refs {
		d := refs[i].dsc

		var newOff int

		if d.off == prev.off && d.ln == prev.ln {
			newOff = prevNew
		} else {
			top -= int(d.ln)
			newOff = top
			copy(m.mem[newOff:newOff+int(d.ln)], m.mem[d.off:d.off+int(d.ln)])
			prev = d
			prevNew = newOff
		}

		nd := strDesc{off: newOff, ln: d.ln}

		switch {
		default:
			*refs[i].guard = nd
		case refs[i].slot >= 0:
			m.storeDesc(refs[i].slot, nd)
		case refs[i].temp >= 0:
			m.temps[refs[i].temp] = nd
		}
	}

	m.fretop = top
}
