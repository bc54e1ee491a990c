package main

import (
	"fmt"
	"os"
	"strings"
)

//
// The statement execution engine.  One entry point per input line;
// the driver loop below walks statements, dispatches handlers and is
// the only code that moves the current position between statements.
// Handlers report where to go next through a flow directive and
// report failures as error codes, never by unwinding
//

//
// Process one line from the prompt: either a program edit (leading
// line number) or a direct statement
//

func (m *machine) processLine(src string) {

	i := 0
	for i < len(src) && src[i] == ' ' {
		i++
	}

	if i >= len(src) {
		return
	}

	if isDigit(src[i]) {
		m.editLine(src[i:])
		return
	}

	m.execDirect(src[i:])
}

func (m *machine) editLine(src string) {

	m.curPos = textPos{line: directLine}

	n, i, ok := finLineNo([]byte(src), 0)
	if !ok {
		m.reportError(errSN)
		return
	}

	if i < len(src) && src[i] == ' ' {
		i++
	}

	tokens := crunch([]byte(src[i:]))

	if len(tokens) > maxLineLen {
		m.reportError(errLS)
		return
	}

	if len(tokens) == 0 {
		//
		// Bare line number deletes.  Deleting a line that does not
		// exist is a silent no-op
		//

		if _, exists := m.findLine(n); !exists {
			return
		}
	}

	if err := m.upsertLine(n, tokens); err != errNone {
		m.reportError(err)
	}
}

//
// Direct statements are crunched into the low input buffer and
// executed in place, so PEEK can see them just like program text
//

func (m *machine) execDirect(src string) {

	tokens := crunch([]byte(src))

	if len(tokens) >= inputBufLen {
		m.reportError(errLS)
		return
	}

	copy(m.mem[inputBufOrg:], tokens)
	m.mem[inputBufOrg+len(tokens)] = 0

	m.curPos = textPos{line: directLine, off: inputBufOrg}
	m.runState = stateRunning

	m.runLoop()
}

//
// The driver loop.  Polls for an interrupt between statements, steps
// over separators and line boundaries, and applies the flow directive
// each handler returns
//

func (m *machine) runLoop() {

	for {
		if m.interrupted.Load() {
			m.interrupted.Store(false)
			m.doBreak(m.curPos)
			return
		}

		c := m.cur()

		if c == ':' {
			m.advance()
			continue
		}

		if c == 0 {
			if m.curPos.line == directLine {
				m.settleState()
				return
			}

			if !m.startLine(m.curPos.off + 1) {
				m.endRun()
				return
			}

			continue
		}

		stmtStart := m.curPos
		m.stmtCount++

		if g.traceExec && m.curPos.line != directLine {
			fmt.Fprintf(os.Stderr, "[%d]\n", m.curPos.line)
		}

		fl, err := m.execStmt()
		m.releaseTemps()

		if err != errNone {
			m.reportError(err)
			return
		}

		switch fl.kind {

		default:

		case flowJump:
			m.curPos = fl.pos
			m.runState = stateRunning

		case flowEnd:
			m.endRun()
			return

		case flowStop:
			if fl.pos == (textPos{}) {
				fl.pos = stmtStart
			}
			m.doBreak(fl.pos)
			return

		case flowHalt:
			m.runState = stateHalted
			m.contPos = textPos{line: directLine}
			return
		}
	}
}

//
// Enter the line whose header starts at hdr.  False means we walked
// off the end of the program
//

func (m *machine) startLine(hdr int) bool {

	if m.rd16(hdr) == 0 {
		return false
	}

	m.curPos = textPos{line: m.rd16(hdr + 2), off: hdr + 4}

	return true
}

//
/// Normal termination: END, or running off the end.  Not continuable
//

func (m *machine) endRun() {

	m.runState = stateHalted
	m.contPos = textPos{line: directLine}
}

//
// A direct line finished.  An earlier STOP stays continuable
//

func (m *machine) settleState() {

	if m.contPos.line != directLine {
		m.runState = stateStopped
	} else {
		m.runState = stateHalted
	}
}

//
// STOP or an interrupt.  Capture the resume position unless we were
// in direct mode, announce the break
//

func (m *machine) doBreak(pos textPos) {

	m.newlineIfNeeded()

	if pos.line == directLine {
		m.printStr("BREAK")
		m.newline()
		m.contPos = textPos{line: directLine}
		m.runState = stateHalted
	} else {
		m.printStr(fmt.Sprintf("BREAK IN %d", pos.line))
		m.newline()
		m.contPos = pos
		m.runState = stateStopped
	}
}

func (m *machine) reportError(err errCode) {

	m.newlineIfNeeded()
	m.printStr(errorMessage(err, m.curPos.line))
	m.newline()

	m.contPos = textPos{line: directLine}
	m.runState = stateHalted
}

//
// Dispatch one statement.  The cursor sits on the first significant
// byte; a leading letter means an assignment without LET
//

func (m *machine) execStmt() (flow, errCode) {

	c := m.cur()

	if isLetter(c) {
		return m.stmtLet()
	}

	if c < tokFirst || c > tokLastStmt {
		return flow{}, errSN
	}

	m.advance()

	switch c {

	default:
		return flow{}, errSN

	case tokEnd:
		return flow{kind: flowEnd}, errNone

	case tokStop:
		m.skipStmt()
		return flow{pos: m.curPos, kind: flowStop}, errNone

	case tokRem:
		m.skipLine()
		return flow{}, errNone

	case tokData:
		m.skipStmt()
		return flow{}, errNone

	case tokLet:
		return m.stmtLet()

	case tokPrint:
		return m.stmtPrint()

	case tokIf:
		return m.stmtIf()

	case tokFor:
		return m.stmtFor()

	case tokNext:
		return m.stmtNext()

	case tokGoto:
		return m.stmtGoto()

	case tokGosub:
		return m.stmtGosub()

	case tokReturn:
		return m.stmtReturn()

	case tokOn:
		return m.stmtOn()

	case tokInput:
		return m.stmtInput()

	case tokRead:
		return m.stmtRead()

	case tokRestore:
		return m.stmtRestore()

	case tokDim:
		return m.stmtDim()

	case tokDef:
		return m.stmtDef()

	case tokPoke:
		return m.stmtPoke()

	case tokRun:
		return m.stmtRun()

	case tokCont:
		return m.stmtCont()

	case tokClear:
		m.clearState()
		return flow{}, errNone

	case tokNew:
		m.scratchProgram()
		return flow{kind: flowHalt}, errNone

	case tokList:
		return m.stmtList()

	case tokSave:
		return m.stmtSave()

	case tokLoad:
		return m.stmtLoad()
	}
}

//
// Cursor skips.  Statement skip is quote aware since a literal may
// contain a colon
//

func (m *machine) skipStmt() {

	inQuote := false

	for {
		c := m.mem[m.curPos.off]

		if c == 0 || c == ':' && !inQuote {
			return
		}

		if c == '"' {
			inQuote = !inQuote
		}

		m.curPos.off++
	}
}

func (m *machine) skipLine() {

	for m.mem[m.curPos.off] != 0 {
		m.curPos.off++
	}
}

//
// Parse a line number at the cursor, for GOTO and friends
//

func (m *machine) parseLineNo() (int, errCode) {

	m.cur()

	n, next, ok := finLineNo(m.mem, m.curPos.off)
	if !ok {
		return 0, errSN
	}

	m.curPos.off = next

	return n, errNone
}

func (m *machine) gotoLine(n int) (flow, errCode) {

	hdr, ok := m.findLine(n)
	if !ok {
		return flow{}, errUS
	}

	return flow{pos: textPos{line: n, off: hdr + 4}, kind: flowJump}, errNone
}

//
// Assignment, with or without the LET keyword
//

func (m *machine) stmtLet() (flow, errCode) {

	slot, isStr, err := m.evalVarRef()
	if err != errNone {
		return flow{}, err
	}

	arytab := m.arytab

	if err := m.expect(tokEQ); err != errNone {
		return flow{}, err
	}

	v, err := m.evalExpr()
	if err != errNone {
		return flow{}, err
	}

	//
	// The right side may have created scalars, which slides the
	// array zone up.  A target slot inside it moves by the same
	// amount
	//

	if slot >= arytab {
		slot += m.arytab - arytab
	}

	if v.str != isStr {
		return flow{}, errTM
	}

	if isStr {
		return flow{}, m.assignStr(slot, v.dsc)
	}

	m.storeNum(slot, v.num)

	return flow{}, errNone
}

//
// Store a string into a value slot.  Sources already in the heap or
// the program text are shared by descriptor; sources in the volatile
// low buffer (direct mode literals, INPUT text) are copied up first
//

func (m *machine) assignStr(slot int, d strDesc) errCode {

	if d.ln != 0 && d.off < m.txttab {
		nd, err := m.makeString(m.strBytes(d))
		if err != errNone {
			return err
		}

		d = nd
	}

	m.storeDesc(slot, d)

	return errNone
}

//
// PRINT.  Semicolon abuts items, comma tabs to the next 14 column
// zone, TAB( and SPC( position the head.  A trailing separator
// suppresses the newline
//

func (m *machine) stmtPrint() (flow, errCode) {

	sep := false

	for {
		c := m.cur()

		if atStmtEnd(c) {
			if !sep {
				m.newline()
			}
			return flow{}, errNone
		}

		sep = false

		switch c {

		default:
			v, err := m.evalExpr()
			if err != errNone {
				return flow{}, err
			}

			if v.str {
				m.printStr(string(m.strBytes(v.dsc)))
			} else {
				m.printStr(m.fout(v.num))
			}

		case ';':
			m.advance()
			sep = true

		case ',':
			m.advance()
			m.zoneTab()
			sep = true

		case tokTab, tokSpc:
			m.advance()

			n, err := m.evalByteArg()
			if err != errNone {
				return flow{}, err
			}

			if err := m.expect(')'); err != errNone {
				return flow{}, err
			}

			if c == tokTab {
				if n >= m.out.width {
					n = m.out.width - 1
				}
				for m.out.pos < n {
					m.printStr(" ")
				}
			} else {
				m.printStr(strings.Repeat(" ", n))
			}

			sep = true
		}
	}
}

//
// IF expr THEN ... | IF expr GOTO n.  A false condition skips the
// whole rest of the line, not just the next statement
//

func (m *machine) stmtIf() (flow, errCode) {

	v, err := m.evalExpr()
	if err != errNone {
		return flow{}, err
	}

	if v.str {
		return flow{}, errTM
	}

	truth := !v.num.isZero()

	c := m.cur()

	if c != tokThen && c != tokGoto {
		return flow{}, errSN
	}

	m.advance()

	if !truth {
		m.skipLine()
		return flow{}, errNone
	}

	if c == tokGoto || isDigit(m.cur()) {
		n, err := m.parseLineNo()
		if err != errNone {
			return flow{}, err
		}

		return m.gotoLine(n)
	}

	return flow{}, errNone
}

func (m *machine) stmtGoto() (flow, errCode) {

	n, err := m.parseLineNo()
	if err != errNone {
		return flow{}, err
	}

	return m.gotoLine(n)
}

func (m *machine) stmtGosub() (flow, errCode) {

	n, err := m.parseLineNo()
	if err != errNone {
		return flow{}, err
	}

	return m.pushGosub(n)
}

func (m *machine) pushGosub(target int) (flow, errCode) {

	if len(m.gosubStack) >= gosubStackMax {
		return flow{}, errOM
	}

	m.gosubStack = append(m.gosubStack, gosubFrame{
		resume:   m.curPos,
		forDepth: len(m.forStack),
	})

	return m.gotoLine(target)
}

//
// RETURN restores the saved position, drops loops opened inside the
// subroutine, and skips the rest of the calling statement so a list
// tail after ON..GOSUB is not re-parsed
//

func (m *machine) stmtReturn() (flow, errCode) {

	if len(m.gosubStack) == 0 {
		return flow{}, errRG
	}

	fr := m.gosubStack[len(m.gosubStack)-1]
	m.gosubStack = m.gosubStack[:len(m.gosubStack)-1]
	m.forStack = m.forStack[:fr.forDepth]

	m.curPos = fr.resume
	m.skipStmt()

	return flow{pos: m.curPos, kind: flowJump}, errNone
}

//
// FOR.  A new loop on a variable already on the stack replaces that
// frame and everything stacked above it
//

func (m *machine) stmtFor() (flow, errCode) {

	name, isStr, err := m.parseVarName()
	if err != errNone {
		return flow{}, err
	}

	if isStr {
		return flow{}, errTM
	}

	if m.cur() == '(' {
		return flow{}, errSN
	}

	voff, err := m.lookupVar(name)
	if err != errNone {
		return flow{}, err
	}
	slot := voff + 2

	if err := m.expect(tokEQ); err != errNone {
		return flow{}, err
	}

	init, err := m.evalNum()
	if err != errNone {
		return flow{}, err
	}

	m.storeNum(slot, init)

	if err := m.expect(tokTo); err != errNone {
		return flow{}, err
	}

	limit, err := m.evalNum()
	if err != errNone {
		return flow{}, err
	}

	step := fltFromInt(1)

	if m.cur() == tokStep {
		m.advance()

		if step, err = m.evalNum(); err != errNone {
			return flow{}, err
		}
	}

	for i := len(m.forStack) - 1; i >= 0; i-- {
		if m.forStack[i].varOff == slot {
			m.forStack = m.forStack[:i]
			break
		}
	}

	if len(m.forStack) >= forStackMax {
		return flow{}, errOM
	}

	m.forStack = append(m.forStack, forFrame{
		limit:  limit,
		step:   step,
		resume: m.curPos,
		varOff: slot,
	})

	return flow{}, errNone
}

//
// NEXT [var[,var...]].  Without a variable the innermost loop is
// meant; naming one unwinds to its frame.  The loop continues while
// the variable has not passed the limit in the step direction
//

func (m *machine) stmtNext() (flow, errCode) {

	for {
		var idx int

		if !isLetter(m.cur()) {
			if len(m.forStack) == 0 {
				return flow{}, errNF
			}
			idx = len(m.forStack) - 1
		} else {
			name, isStr, err := m.parseVarName()
			if err != errNone {
				return flow{}, err
			}

			if isStr {
				return flow{}, errTM
			}

			voff, err := m.lookupVar(name)
			if err != errNone {
				return flow{}, err
			}

			idx = -1
			for i := len(m.forStack) - 1; i >= 0; i-- {
				if m.forStack[i].varOff == voff+2 {
					idx = i
					break
				}
			}

			if idx < 0 {
				return flow{}, errNF
			}
		}

		m.forStack = m.forStack[:idx+1]
		fr := &m.forStack[idx]

		v := m.fadd(m.loadNum(fr.varOff), fr.step)
		if err := m.fpCheck(); err != errNone {
			return flow{}, err
		}

		m.storeNum(fr.varOff, v)

		var done bool

		if fr.step.sign != 0 {
			done = fcomp(v, fr.limit) < 0
		} else {
			done = fcomp(v, fr.limit) > 0
		}

		if !done {
			return flow{pos: fr.resume, kind: flowJump}, errNone
		}

		m.forStack = m.forStack[:idx]

		if m.cur() != ',' {
			return flow{}, errNone
		}

		m.advance()
	}
}

//
// ON expr GOTO/GOSUB list.  A selector of zero or past the end of
// the list falls through to the next statement
//

func (m *machine) stmtOn() (flow, errCode) {

	n, err := m.evalByteArg()
	if err != errNone {
		return flow{}, err
	}

	c := m.cur()
	if c != tokGoto && c != tokGosub {
		return flow{}, errSN
	}

	m.advance()

	k := 0

	for {
		target, err := m.parseLineNo()
		if err != errNone {
			return flow{}, err
		}

		k++

		if k == n {
			if c == tokGosub {
				return m.pushGosub(target)
			}
			return m.gotoLine(target)
		}

		if m.cur() != ',' {
			return flow{}, errNone
		}

		m.advance()
	}
}

//
// INPUT ["prompt";] varlist.  Illegal in direct mode since the input
// buffer is in use.  Too few fields prompt for more; a malformed
// field restarts the whole statement
//

func (m *machine) stmtInput() (flow, errCode) {

	if m.curPos.line == directLine {
		return flow{}, errID
	}

	prompt := ""

	if m.cur() == '"' {
		v, err := m.evalStrLiteral()
		if err != errNone {
			return flow{}, err
		}

		prompt = string(m.strBytes(v.dsc))

		if err := m.expect(';'); err != errNone {
			return flow{}, err
		}
	}

	listStart := m.curPos

	for {
		m.curPos = listStart

		fields, ok := m.readFields(prompt + inputPrompt)
		if !ok {
			return flow{pos: textPos{}, kind: flowStop}, errNone
		}

		redo, stopped, err := m.assignInputs(&fields)
		if err != errNone {
			return flow{}, err
		}

		if stopped {
			return flow{pos: textPos{}, kind: flowStop}, errNone
		}

		if !redo {
			if len(fields) != 0 {
				m.printStr("?EXTRA IGNORED")
				m.newline()
			}
			return flow{}, errNone
		}

		m.printStr("?REDO FROM START")
		m.newline()
	}
}

//
// Read one response line and split it into fields: comma separated,
// quotes protecting embedded commas
//

func (m *machine) readFields(prompt string) ([]string, bool) {

	line, ok := m.readLine(prompt)
	if !ok {
		return nil, false
	}

	return splitFields(line), true
}

func splitFields(line string) []string {

	var fields []string
	i := 0

	for {
		for i < len(line) && line[i] == ' ' {
			i++
		}

		start := i
		inQuote := false

		for i < len(line) {
			c := line[i]

			if c == '"' {
				inQuote = !inQuote
			} else if c == ',' && !inQuote {
				break
			}

			i++
		}

		fields = append(fields, strings.TrimRight(line[start:i], " "))

		if i >= len(line) {
			return fields
		}

		i++
	}
}

//
// Walk the variable list assigning fields in order.  Returns redo
// when a field cannot be converted.  A short supply of fields asks
// for more with a bare double prompt
//

func (m *machine) assignInputs(fields *[]string) (bool, bool, errCode) {

	for {
		slot, isStr, err := m.evalVarRef()
		if err != errNone {
			return false, false, err
		}

		for len(*fields) == 0 {
			more, ok := m.readFields("?" + inputPrompt)
			if !ok {
				return false, true, errNone
			}
			*fields = more
		}

		field := (*fields)[0]
		*fields = (*fields)[1:]

		if isStr {
			b := []byte(field)

			if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
				b = b[1 : len(b)-1]
			}

			if len(b) > maxStringLen {
				return false, false, errLS
			}

			d, serr := m.makeString(b)
			if serr != errNone {
				return false, false, serr
			}

			m.storeDesc(slot, d)
		} else {
			f, ok := m.parseNumField([]byte(field))
			if !ok {
				return true, false, errNone
			}

			m.storeNum(slot, f)
		}

		if m.cur() != ',' {
			return false, false, errNone
		}

		m.advance()
	}
}

//
// Convert a numeric field, rejecting trailing junk
//

func (m *machine) parseNumField(b []byte) (mflt, bool) {

	i := 0

	for i < len(b) && b[i] == ' ' {
		i++
	}

	neg := false

	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}

	if i >= len(b) || !isDigit(b[i]) && b[i] != '.' {
		return mflt{}, false
	}

	f, next := m.fin(b, i)

	if m.fpCheck() != errNone {
		return mflt{}, false
	}

	for next < len(b) {
		if b[next] != ' ' {
			return mflt{}, false
		}
		next++
	}

	if neg {
		f = fneg(f)
	}

	return f, true
}

//
// READ pulls its fields from DATA statements instead of the
// terminal, same assignment rules
//

func (m *machine) stmtRead() (flow, errCode) {

	for {
		slot, isStr, err := m.evalVarRef()
		if err != errNone {
			return flow{}, err
		}

		if err := m.readDataItem(slot, isStr); err != errNone {
			return flow{}, err
		}

		if m.cur() != ',' {
			return flow{}, errNone
		}

		m.advance()
	}
}

//
// Move the DATA cursor past separators and exhausted statements to
// the start of the next unread item
//

func (m *machine) advanceData() errCode {

	if m.dataPos.off == 0 {
		hdr := m.txttab

		if m.rd16(hdr) == 0 {
			return errOD
		}

		m.dataPos = textPos{line: m.rd16(hdr + 2), off: hdr + 4}
		m.dataFresh = true
	}

	off := m.dataPos.off
	line := m.dataPos.line

	if m.dataFresh {
		m.dataFresh = false
		return m.searchData(line, off, true)
	}

	for m.mem[off] == ' ' {
		off++
	}

	if m.mem[off] == ',' {
		m.dataPos = textPos{line: line, off: off + 1}
		return errNone
	}

	return m.searchData(line, off, false)
}

//
// Scan forward for the next DATA statement.  atStmt says whether off
// already sits at a statement start
//

func (m *machine) searchData(line, off int, atStmt bool) errCode {

	for {
		if atStmt {
			for m.mem[off] == ' ' {
				off++
			}

			if m.mem[off] == tokData {
				m.dataPos = textPos{line: line, off: off + 1}
				return errNone
			}

			atStmt = false
			continue
		}

		inQuote := false

		for {
			c := m.mem[off]

			if c == 0 || c == ':' && !inQuote {
				break
			}

			if c == '"' {
				inQuote = !inQuote
			}

			off++
		}

		if m.mem[off] == ':' {
			off++
			atStmt = true
			continue
		}

		hdr := off + 1

		if m.rd16(hdr) == 0 {
			return errOD
		}

		line = m.rd16(hdr + 2)
		off = hdr + 4
		atStmt = true
	}
}

//
// Consume one DATA item into a value slot
//

func (m *machine) readDataItem(slot int, isStr bool) errCode {

	if err := m.advanceData(); err != errNone {
		return err
	}

	off := m.dataPos.off

	for m.mem[off] == ' ' {
		off++
	}

	if isStr {
		var d strDesc

		if m.mem[off] == '"' {
			start := off + 1
			end := start

			for m.mem[end] != '"' && m.mem[end] != 0 {
				end++
			}

			if end-start > maxStringLen {
				return errLS
			}

			d = strDesc{off: start, ln: byte(end - start)}

			if m.mem[end] == '"' {
				end++
			}
			off = end
		} else {
			start := off

			for {
				c := m.mem[off]
				if c == 0 || c == ':' || c == ',' {
					break
				}
				off++
			}

			end := off
			for end > start && m.mem[end-1] == ' ' {
				end--
			}

			if end-start > maxStringLen {
				return errLS
			}

			d = strDesc{off: start, ln: byte(end - start)}
		}

		m.dataPos.off = off

		return m.assignStr(slot, d)
	}

	neg := false

	if m.mem[off] == '+' || m.mem[off] == '-' {
		neg = m.mem[off] == '-'
		off++
	}

	if !isDigit(m.mem[off]) && m.mem[off] != '.' {
		return errSN
	}

	f, next := m.fin(m.mem, off)

	if err := m.fpCheck(); err != errNone {
		return err
	}

	for m.mem[next] == ' ' {
		next++
	}

	c := m.mem[next]
	if c != 0 && c != ':' && c != ',' {
		return errSN
	}

	if neg {
		f = fneg(f)
	}

	m.storeNum(slot, f)
	m.dataPos.off = next

	return errNone
}

//
// RESTORE [line]: rewind the DATA cursor to the program start or to
// a specific line
//

func (m *machine) stmtRestore() (flow, errCode) {

	if !isDigit(m.cur()) {
		m.dataPos = textPos{}
		m.dataFresh = false
		return flow{}, errNone
	}

	n, err := m.parseLineNo()
	if err != errNone {
		return flow{}, err
	}

	hdr, ok := m.findLine(n)
	if !ok {
		return flow{}, errUS
	}

	m.dataPos = textPos{line: n, off: hdr + 4}
	m.dataFresh = true

	return flow{}, errNone
}

func (m *machine) stmtDim() (flow, errCode) {

	for {
		name, _, err := m.parseVarName()
		if err != errNone {
			return flow{}, err
		}

		if err := m.expect('('); err != errNone {
			return flow{}, err
		}

		var extents []int

		for {
			n, err := m.evalIntArg()
			if err != errNone {
				return flow{}, err
			}

			extents = append(extents, n)

			if m.cur() != ',' {
				break
			}

			m.advance()
		}

		if err := m.expect(')'); err != errNone {
			return flow{}, err
		}

		if len(extents) > 2 {
			return flow{}, errBS
		}

		if _, err := m.createArray(name, extents); err != errNone {
			return flow{}, err
		}

		if m.cur() != ',' {
			return flow{}, errNone
		}

		m.advance()
	}
}

//
// DEF FN name(param) = expr.  The body is never evaluated here, only
// its position recorded
//

func (m *machine) stmtDef() (flow, errCode) {

	if m.curPos.line == directLine {
		return flow{}, errID
	}

	if err := m.expect(tokFn); err != errNone {
		return flow{}, err
	}

	name, isStr, err := m.parseVarName()
	if err != errNone {
		return flow{}, err
	}

	if isStr {
		return flow{}, errTM
	}

	if err := m.expect('('); err != errNone {
		return flow{}, err
	}

	param, pStr, err := m.parseVarName()
	if err != errNone {
		return flow{}, err
	}

	if pStr {
		return flow{}, errTM
	}

	if err := m.expect(')'); err != errNone {
		return flow{}, err
	}

	if err := m.expect(tokEQ); err != errNone {
		return flow{}, err
	}

	def := fnDef{body: m.curPos, name: name, param: param}

	m.skipStmt()

	for i := range m.fns {
		if m.fns[i].name == name {
			m.fns[i] = def
			return flow{}, errNone
		}
	}

	m.fns = append(m.fns, def)

	return flow{}, errNone
}

func (m *machine) stmtPoke() (flow, errCode) {

	f, err := m.evalNum()
	if err != errNone {
		return flow{}, err
	}

	addr := m.fltToUint16(f)
	if err := m.fpCheck(); err != errNone {
		return flow{}, err
	}

	if err := m.expect(','); err != errNone {
		return flow{}, err
	}

	val, err := m.evalByteArg()
	if err != errNone {
		return flow{}, err
	}

	return flow{}, m.poke(addr, val)
}

//
// RUN [line].  Wipes all state, then enters the program
//

func (m *machine) stmtRun() (flow, errCode) {

	target := -1

	if isDigit(m.cur()) {
		n, err := m.parseLineNo()
		if err != errNone {
			return flow{}, err
		}
		target = n
	}

	m.clearState()

	if target >= 0 {
		return m.gotoLine(target)
	}

	if m.rd16(m.txttab) == 0 {
		return flow{kind: flowEnd}, errNone
	}

	return flow{pos: textPos{line: m.rd16(m.txttab + 2), off: m.txttab + 4},
		kind: flowJump}, errNone
}

func (m *machine) stmtCont() (flow, errCode) {

	if m.contPos.line == directLine {
		return flow{}, errCN
	}

	pos := m.contPos

	return flow{pos: pos, kind: flowJump}, errNone
}

//
// LIST [start][-end].  Interruptible; the flag is left set so the
// driver notices on the next poll
//

func (m *machine) stmtList() (flow, errCode) {

	start, end := 0, maxLineNo

	if isDigit(m.cur()) {
		n, err := m.parseLineNo()
		if err != errNone {
			return flow{}, err
		}

		start, end = n, n
	}

	if m.cur() == tokMinus {
		m.advance()
		end = maxLineNo

		if isDigit(m.cur()) {
			n, err := m.parseLineNo()
			if err != errNone {
				return flow{}, err
			}
			end = n
		}
	}

	for hdr := m.txttab; m.rd16(hdr) != 0; hdr = m.rd16(hdr) {
		if m.interrupted.Load() {
			break
		}

		ln := m.rd16(hdr + 2)

		if ln > end {
			break
		}

		if ln >= start {
			m.printStr(fmt.Sprintf("%d %s", ln, m.listLine(hdr)))
			m.newline()
		}
	}

	return flow{}, errNone
}

func (m *machine) listLine(hdr int) string {

	q := hdr + 4
	for m.mem[q] != 0 {
		q++
	}

	return detokenize(m.mem[hdr+4 : q])
}

//
// SAVE and LOAD move the program through plain text files, one
// "number text" line per program line
//

func (m *machine) stmtSave() (flow, errCode) {

	name, err := m.fileArg()
	if err != errNone {
		return flow{}, err
	}

	var sb strings.Builder

	for hdr := m.txttab; m.rd16(hdr) != 0; hdr = m.rd16(hdr) {
		fmt.Fprintf(&sb, "%d %s\n", m.rd16(hdr+2), m.listLine(hdr))
	}

	if werr := os.WriteFile(name, []byte(sb.String()), 0644); werr != nil {
		m.printStr(werr.Error())
		m.newline()
	}

	return flow{}, errNone
}

func (m *machine) stmtLoad() (flow, errCode) {

	name, err := m.fileArg()
	if err != errNone {
		return flow{}, err
	}

	return flow{kind: flowHalt}, m.loadFromFile(name)
}

//
// Shared by the LOAD statement and a program named on the command
// line.  A failure to read the file is reported but is not a BASIC
// error; a malformed line is
//

func (m *machine) loadFromFile(name string) errCode {

	data, rerr := os.ReadFile(name)
	if rerr != nil {
		m.printStr(rerr.Error())
		m.newline()
		return errNone
	}

	m.scratchProgram()

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r ")

		if line == "" {
			continue
		}

		n, i, ok := finLineNo([]byte(line), 0)
		if !ok {
			return errSN
		}

		if i < len(line) && line[i] == ' ' {
			i++
		}

		tokens := crunch([]byte(line[i:]))

		if len(tokens) > maxLineLen {
			return errLS
		}

		if uerr := m.upsertLine(n, tokens); uerr != errNone {
			return uerr
		}
	}

	return errNone
}

func (m *machine) fileArg() (string, errCode) {

	d, err := m.evalStr()
	if err != errNone {
		return "", err
	}

	name := string(m.strBytes(d))

	if name == "" {
		return "", errFC
	}

	if !strings.Contains(name, ".") {
		name += basFileSuffix
	}

	return name, errNone
}

//
// Print head management.  Output wraps at the configured width and
// POS reports the zero based column
//

func (m *machine) printStr(str string) {

	i := 0

	for i < len(str) {
		if m.out.pos >= m.out.width {
			m.newline()
		}

		n := len(str) - i

		if room := m.out.width - m.out.pos; n > room {
			n = room
		}

		j := strings.IndexByte(str[i:i+n], '\n')
		if j >= 0 {
			m.write(str[i : i+j])
			m.newline()
			i += j + 1
			continue
		}

		m.write(str[i : i+n])
		m.out.pos += n
		i += n
	}
}

func (m *machine) newline() {

	m.write("\n")
	m.out.pos = 0
}

func (m *machine) newlineIfNeeded() {

	if m.out.pos != 0 {
		m.newline()
	}
}

func (m *machine) zoneTab() {

	next := (m.out.pos/zoneWidth + 1) * zoneWidth

	if next+zoneWidth > m.out.width {
		m.newline()
		return
	}

	for m.out.pos < next {
		m.printStr(" ")
	}
}
