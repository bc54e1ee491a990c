package main

//
// The expression evaluator.  Operates directly on the crunched text
// at m.curPos, classic recursive descent with binding powers.  Every
// value is either an MBF number or a string descriptor; mixing the
// two in an operator is a type mismatch
//

//
// Cursor primitives.  Spaces are insignificant outside quotes, so
// the scanner skips them on every fetch
//

func (m *machine) cur() byte {

	for m.mem[m.curPos.off] == ' ' {
		m.curPos.off++
	}

	return m.mem[m.curPos.off]
}

func (m *machine) advance() byte {

	m.curPos.off++

	return m.cur()
}

func (m *machine) expect(c byte) errCode {

	if m.cur() != c {
		return errSN
	}

	m.advance()

	return errNone
}

func atStmtEnd(c byte) bool {

	return c == 0 || c == ':'
}

func numValue(f mflt) value {

	return value{num: f}
}

func strValue(d strDesc) value {

	return value{dsc: d, str: true}
}

//
// Binding powers.  NOT sits between AND and the relationals, the
// relationals below additive, unary minus tightest of all
//

const (
	precOr  = 1
	precAnd = 2
	precNot = 3
	precRel = 4
	precAdd = 5
	precMul = 6
)

func binPrec(t byte) int {

	switch t {

	default:
		return 0

	case tokOr:
		return precOr

	case tokAnd:
		return precAnd

	case tokGT, tokEQ, tokLT:
		return precRel

	case tokPlus, tokMinus:
		return precAdd

	case tokMul, tokDiv:
		return precMul
	}
}

func (m *machine) evalExpr() (value, errCode) {

	return m.evalLevel(1)
}

func (m *machine) evalLevel(minPrec int) (value, errCode) {

	var left value
	var err errCode

	if m.cur() == tokNot && precNot >= minPrec {
		m.advance()

		left, err = m.evalLevel(precNot)
		if err != errNone {
			return value{}, err
		}

		left, err = m.applyNot(left)
	} else {
		left, err = m.evalUnary()
	}

	if err != errNone {
		return value{}, err
	}

	for {
		t := m.cur()
		prec := binPrec(t)

		if prec == 0 || prec < minPrec {
			return left, errNone
		}

		if prec == precRel {
			left, err = m.evalRelational(left, minPrec)
			if err != errNone {
				return value{}, err
			}
			continue
		}

		m.advance()

		//
		// Evaluating the right operand can trigger a collection, so a
		// string left operand is pinned until the operand is in hand
		//

		if left.str {
			m.guard(&left.dsc)
		}

		right, err := m.evalLevel(prec + 1)

		if left.str {
			m.unguard()
		}

		if err != errNone {
			return value{}, err
		}

		left, err = m.applyBinary(t, left, right)
		if err != errNone {
			return value{}, err
		}
	}
}

//
// The three relational tokens can pair up into <= >= <>, so the
// operator is gathered as a mask before the right operand
//

const (
	relGT = 1
	relEQ = 2
	relLT = 4
)

func (m *machine) evalRelational(left value, minPrec int) (value, errCode) {

	mask := 0

	for {
		var bit int

		switch m.cur() {

		default:
			bit = 0

		case tokGT:
			bit = relGT

		case tokEQ:
			bit = relEQ

		case tokLT:
			bit = relLT
		}

		if bit == 0 {
			break
		}

		if mask&bit != 0 {
			return value{}, errSN
		}

		mask |= bit
		m.advance()
	}

	if mask == relGT|relEQ|relLT {
		return value{}, errSN
	}

	if left.str {
		m.guard(&left.dsc)
	}

	right, err := m.evalLevel(precRel + 1)

	if left.str {
		m.unguard()
	}

	if err != errNone {
		return value{}, err
	}

	if left.str != right.str {
		return value{}, errTM
	}

	var c int

	if left.str {
		c = m.strComp(left.dsc, right.dsc)
	} else {
		c = fcomp(left.num, right.num)
	}

	hit := c > 0 && mask&relGT != 0 ||
		c == 0 && mask&relEQ != 0 ||
		c < 0 && mask&relLT != 0

	if hit {
		return numValue(fltFromInt(-1)), errNone
	}

	return numValue(fzero()), errNone
}

//
// Byte-wise string comparison, shorter string wins a tie on the
// common prefix
//

func (m *machine) strComp(a, b strDesc) int {

	ab := m.strBytes(a)
	bb := m.strBytes(b)

	n := len(ab)
	if len(bb) < n {
		n = len(bb)
	}

	for i := 0; i < n; i++ {
		if ab[i] != bb[i] {
			if ab[i] > bb[i] {
				return 1
			}
			return -1
		}
	}

	switch {

	default:
		return 0

	case len(ab) > len(bb):
		return 1

	case len(ab) < len(bb):
		return -1
	}
}

func (m *machine) applyNot(v value) (value, errCode) {

	n, err := m.toInt16(v)
	if err != errNone {
		return value{}, err
	}

	return numValue(fltFromInt(int(^n))), errNone
}

func (m *machine) toInt16(v value) (int16, errCode) {

	if v.str {
		return 0, errTM
	}

	n := m.fltToInt16(v.num)

	if err := m.fpCheck(); err != errNone {
		return 0, err
	}

	return int16(n), errNone
}

func (m *machine) applyBinary(t byte, left, right value) (value, errCode) {

	if t == tokPlus && left.str && right.str {
		return m.concat(left.dsc, right.dsc)
	}

	if t == tokAnd || t == tokOr {
		a, err := m.toInt16(left)
		if err != errNone {
			return value{}, err
		}

		b, err := m.toInt16(right)
		if err != errNone {
			return value{}, err
		}

		if t == tokAnd {
			return numValue(fltFromInt(int(a & b))), errNone
		}

		return numValue(fltFromInt(int(a | b))), errNone
	}

	if left.str || right.str {
		return value{}, errTM
	}

	var f mflt

	switch t {

	default:
		return value{}, errSN

	case tokPlus:
		f = m.fadd(left.num, right.num)

	case tokMinus:
		f = m.fsub(left.num, right.num)

	case tokMul:
		f = m.fmul(left.num, right.num)

	case tokDiv:
		f = m.fdiv(left.num, right.num)
	}

	if err := m.fpCheck(); err != errNone {
		return value{}, err
	}

	return numValue(f), errNone
}

func (m *machine) concat(a, b strDesc) (value, errCode) {

	n := int(a.ln) + int(b.ln)
	if n > maxStringLen {
		return value{}, errLS
	}

	buf := make([]byte, 0, n)
	buf = append(buf, m.strBytes(a)...)
	buf = append(buf, m.strBytes(b)...)

	d, err := m.makeString(buf)
	if err != errNone {
		return value{}, err
	}

	return strValue(d), errNone
}

func (m *machine) evalUnary() (value, errCode) {

	switch m.cur() {

	default:
		return m.evalPrimary()

	case tokMinus:
		m.advance()

		v, err := m.evalUnary()
		if err != errNone {
			return value{}, err
		}

		if v.str {
			return value{}, errTM
		}

		return numValue(fneg(v.num)), errNone

	case tokPlus:
		m.advance()

		return m.evalUnary()
	}
}

func (m *machine) evalPrimary() (value, errCode) {

	c := m.cur()

	switch {

	default:
		return value{}, errSN

	case c == '(':
		m.advance()

		v, err := m.evalExpr()
		if err != errNone {
			return value{}, err
		}

		if err := m.expect(')'); err != errNone {
			return value{}, err
		}

		return v, errNone

	case c >= '0' && c <= '9' || c == '.':
		f, next := m.fin(m.mem, m.curPos.off)
		m.curPos.off = next

		if err := m.fpCheck(); err != errNone {
			return value{}, err
		}

		return numValue(f), errNone

	case c == '"':
		return m.evalStrLiteral()

	case c == tokFn:
		m.advance()

		return m.evalFn()

	case c >= tokFirstFunc && c <= tokLast:
		m.advance()

		return m.evalFunc(c)

	case isLetter(c):
		slot, isStr, err := m.evalVarRef()
		if err != errNone {
			return value{}, err
		}

		if isStr {
			return strValue(m.loadDesc(slot)), errNone
		}

		return numValue(m.loadNum(slot)), errNone
	}
}

//
// A string literal's descriptor points straight into the crunched
// text, no heap copy.  The collector never relocates storage below
// the heap so the descriptor stays valid for the literal's lifetime
//

func (m *machine) evalStrLiteral() (value, errCode) {

	m.curPos.off++
	start := m.curPos.off

	for m.mem[m.curPos.off] != '"' {
		if m.mem[m.curPos.off] == 0 {
			break
		}
		m.curPos.off++
	}

	n := m.curPos.off - start
	if n > maxStringLen {
		return value{}, errLS
	}

	if m.mem[m.curPos.off] == '"' {
		m.curPos.off++
	}

	return strValue(strDesc{off: start, ln: byte(n)}), errNone
}

//
// Parse a variable name at the cursor: a letter, optionally followed
// by letters and digits of which only the second character counts,
// with a dollar suffix marking a string.  Returns the canonical two
// byte form
//

func (m *machine) parseVarName() ([2]byte, bool, errCode) {

	c := m.cur()
	if !isLetter(c) {
		return [2]byte{}, false, errSN
	}

	var name [2]byte

	name[0] = c
	c = m.advance()

	if isLetter(c) || c >= '0' && c <= '9' {
		name[1] = c
		c = m.advance()

		for isLetter(c) || c >= '0' && c <= '9' {
			c = m.advance()
		}
	}

	isStr := c == '$'
	if isStr {
		name[1] |= strNameTag
		m.advance()
	}

	return name, isStr, errNone
}

//
// Resolve a variable or array element reference to its value slot
//

func (m *machine) evalVarRef() (int, bool, errCode) {

	name, isStr, err := m.parseVarName()
	if err != errNone {
		return 0, false, err
	}

	if m.cur() != '(' {
		slot, err := m.lookupVar(name)
		if err != errNone {
			return 0, false, err
		}

		return slot + 2, isStr, errNone
	}

	m.advance()

	var subs []int

	for {
		n, err := m.evalIntArg()
		if err != errNone {
			return 0, false, err
		}

		subs = append(subs, n)

		if m.cur() != ',' {
			break
		}

		m.advance()
	}

	if err := m.expect(')'); err != errNone {
		return 0, false, err
	}

	if len(subs) > 2 {
		return 0, false, errBS
	}

	slot, err := m.arrayElem(name, subs)
	if err != errNone {
		return 0, false, err
	}

	return slot, isStr, errNone
}

//
// Argument helpers for the builtin functions
//

func (m *machine) evalNum() (mflt, errCode) {

	v, err := m.evalExpr()
	if err != errNone {
		return mflt{}, err
	}

	if v.str {
		return mflt{}, errTM
	}

	return v.num, errNone
}

func (m *machine) evalStr() (strDesc, errCode) {

	v, err := m.evalExpr()
	if err != errNone {
		return strDesc{}, err
	}

	if !v.str {
		return strDesc{}, errTM
	}

	return v.dsc, errNone
}

func (m *machine) evalIntArg() (int, errCode) {

	f, err := m.evalNum()
	if err != errNone {
		return 0, err
	}

	n := m.fltToInt16(f)

	if err := m.fpCheck(); err != errNone {
		return 0, err
	}

	return n, errNone
}

func (m *machine) evalByteArg() (int, errCode) {

	n, err := m.evalIntArg()
	if err != errNone {
		return 0, err
	}

	if n < 0 || n > 255 {
		return 0, errFC
	}

	return n, errNone
}

//
// User function application: look up the DEF, bind the parameter by
// saving and restoring its slot around evaluating the stored body
//

func (m *machine) evalFn() (value, errCode) {

	name, isStr, err := m.parseVarName()
	if err != errNone {
		return value{}, err
	}

	if isStr {
		return value{}, errTM
	}

	var def *fnDef

	for i := range m.fns {
		if m.fns[i].name == name {
			def = &m.fns[i]
			break
		}
	}

	if def == nil {
		return value{}, errUF
	}

	if err := m.expect('('); err != errNone {
		return value{}, err
	}

	arg, err := m.evalNum()
	if err != errNone {
		return value{}, err
	}

	if err := m.expect(')'); err != errNone {
		return value{}, err
	}

	slot, lerr := m.lookupVar(def.param)
	if lerr != errNone {
		return value{}, lerr
	}

	var saved [valueSize]byte
	copy(saved[:], m.mem[slot+2:slot+2+valueSize])
	m.storeNum(slot+2, arg)

	ret := m.curPos
	m.curPos = def.body

	v, err := m.evalExpr()

	m.curPos = ret
	copy(m.mem[slot+2:], saved[:])

	if err != errNone {
		return value{}, err
	}

	if v.str {
		return value{}, errTM
	}

	return v, errNone
}

func (m *machine) evalFunc(t byte) (value, errCode) {

	if err := m.expect('('); err != errNone {
		return value{}, err
	}

	var v value
	var err errCode

	switch t {

	default:
		return value{}, errSN

	case tokSgn:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			v = numValue(fsgn(f))
		}

	case tokInt:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			v = numValue(m.fint(f))
			err = m.fpCheck()
		}

	case tokAbs:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			v = numValue(fabs(f))
		}

	case tokFre:
		if _, err = m.evalExpr(); err == errNone {
			m.collect()
			v = numValue(fltFromInt(m.freeSpace()))
		}

	case tokPos:
		if _, err = m.evalExpr(); err == errNone {
			v = numValue(fltFromInt(m.out.pos))
		}

	case tokPeek:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			addr := m.fltToUint16(f)
			if err = m.fpCheck(); err == errNone {
				var b int
				if b, err = m.peek(addr); err == errNone {
					v = numValue(fltFromInt(b))
				}
			}
		}

	case tokRnd:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			v = numValue(m.rnd(f))
		}

	case tokLen:
		var d strDesc
		if d, err = m.evalStr(); err == errNone {
			v = numValue(fltFromInt(int(d.ln)))
		}

	case tokAsc:
		var d strDesc
		if d, err = m.evalStr(); err == errNone {
			if d.ln == 0 {
				err = errFC
			} else {
				v = numValue(fltFromInt(int(m.mem[d.off])))
			}
		}

	case tokVal:
		var d strDesc
		if d, err = m.evalStr(); err == errNone {
			b := m.strBytes(d)
			i := 0
			neg := false

			for i < len(b) && b[i] == ' ' {
				i++
			}

			if i < len(b) && (b[i] == '+' || b[i] == '-') {
				neg = b[i] == '-'
				i++
			}

			f, _ := m.fin(b, i)
			if neg {
				f = fneg(f)
			}

			if err = m.fpCheck(); err == errNone {
				v = numValue(f)
			}
		}

	case tokStr:
		var f mflt
		if f, err = m.evalNum(); err == errNone {
			var d strDesc
			if d, err = m.makeString([]byte(m.fout(f))); err == errNone {
				v = strValue(d)
			}
		}

	case tokChr:
		var n int
		if n, err = m.evalByteArg(); err == errNone {
			var d strDesc
			if d, err = m.makeString([]byte{byte(n)}); err == errNone {
				v = strValue(d)
			}
		}

	case tokLeft, tokRight, tokMid:
		return m.evalSubstring(t)
	}

	if err != errNone {
		return value{}, err
	}

	if err := m.expect(')'); err != errNone {
		return value{}, err
	}

	return v, errNone
}

//
// LEFT$, RIGHT$ and MID$.  The result is always a fresh heap copy
//

func (m *machine) evalSubstring(t byte) (value, errCode) {

	d, err := m.evalStr()
	if err != errNone {
		return value{}, err
	}

	//
	// The position arguments are expressions of their own, so the
	// source descriptor stays pinned until they are all in hand
	//

	m.guard(&d)

	if err := m.expect(','); err != errNone {
		return value{}, err
	}

	n, err := m.evalByteArg()
	if err != errNone {
		return value{}, err
	}

	count := maxStringLen

	if t == tokMid {
		if n == 0 {
			return value{}, errFC
		}

		if m.cur() == ',' {
			m.advance()

			if count, err = m.evalByteArg(); err != errNone {
				return value{}, err
			}
		}
	}

	if err := m.expect(')'); err != errNone {
		return value{}, err
	}

	m.unguard()

	src := m.strBytes(d)
	var part []byte

	switch t {

	case tokLeft:
		if n > len(src) {
			n = len(src)
		}
		part = src[:n]

	case tokRight:
		if n > len(src) {
			n = len(src)
		}
		part = src[len(src)-n:]

	case tokMid:
		if n > len(src) {
			part = nil
		} else {
			part = src[n-1:]
			if count < len(part) {
				part = part[:count]
			}
		}
	}

	//
	// part still aliases the heap and makeString may compact it, so
	// the bytes move to native storage first
	//

	part = append([]byte(nil), part...)

	nd, err := m.makeString(part)
	if err != errNone {
		return value{}, err
	}

	return strValue(nd), errNone
}
