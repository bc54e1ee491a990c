package main

import (
	"fmt"
	"strings"
)

//
// Decimal conversion in and out of MBF.  Both directions go through
// the MBF operations themselves (multiply/divide by ten, add digit),
// not through the host floating point, so the rounding artifacts of
// the bit-level engine show up in printed output exactly as the
// original produced them
//

//
// Handy constants.  These are exact in MBF, so building them once at
// startup is safe
//

var fTen = fltFromInt(10)
var fHalf = mflt{exp: expBias - 1, mant: mantMSB}
var fScaleLo = fltFromInt(100000)
var fScaleHi = fltFromInt(1000000)

//
// Parse a decimal or exponential literal out of a byte sequence
// starting at index i.  Returns the value and the index of the first
// unconsumed byte.  The caller has already established that a number
// starts here (leading digit or '.'); a leading sign is the
// expression evaluator's business, not ours
//

func (u *fpu) fin(b []byte, i int) (mflt, int) {

	var val mflt
	var frac int
	var anyDigit bool

	for i < len(b) && isDigit(b[i]) {
		val = u.fadd(u.fmul(val, fTen), fltFromInt(int(b[i]-'0')))
		anyDigit = true
		i++
	}

	if i < len(b) && b[i] == '.' {
		i++
		for i < len(b) && isDigit(b[i]) {
			val = u.fadd(u.fmul(val, fTen), fltFromInt(int(b[i]-'0')))
			frac++
			anyDigit = true
			i++
		}
	}

	//
	// An exponent part.  'E' not followed by a sign or digit is not
	// an exponent - it could be the start of a variable name in the
	// surrounding text, so leave it unconsumed
	//

	exp10 := 0

	if anyDigit && i < len(b) && (b[i] == 'E' || b[i] == 'e') {
		j := i + 1
		esign := 1

		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			if b[j] == '-' {
				esign = -1
			}
			j++
		}

		if j < len(b) && isDigit(b[j]) {
			e := 0
			for j < len(b) && isDigit(b[j]) {
				e = e*10 + int(b[j]-'0')
				if e > 127 {
					e = 127
				}
				j++
			}
			exp10 = e * esign
			i = j
		}
	}

	//
	// Apply the decimal scale one power of ten at a time, the way
	// the original walks its exponent counter
	//

	scale := exp10 - frac

	for ; scale > 0; scale-- {
		val = u.fmul(val, fTen)
	}

	for ; scale < 0; scale++ {
		val = u.fdiv(val, fTen)
	}

	return val, i
}

//
// Parse an unsigned line number: plain ASCII digits, bounded
//

func finLineNo(b []byte, i int) (int, int, bool) {

	if i >= len(b) || !isDigit(b[i]) {
		return 0, i, false
	}

	n := 0

	for i < len(b) && isDigit(b[i]) {
		n = n*10 + int(b[i]-'0')
		if n > maxLineNo {
			return 0, i, false
		}
		i++
	}

	return n, i, true
}

//
// Format an MBF value the way the original prints numbers: a leading
// space for non-negative values (minus sign otherwise), up to six
// significant digits, fixed notation for magnitudes from .01 up to
// 999999 and exponential notation outside that, and a trailing space
//

func (u *fpu) fout(f mflt) string {

	if f.isZero() {
		return " 0 "
	}

	lead := " "
	if f.sign != 0 {
		lead = "-"
		f = fabs(f)
	}

	//
	// Scale the magnitude into the six digit window, tracking the
	// decimal exponent
	//

	dd := 0

	for fcomp(f, fScaleLo) < 0 {
		f = u.fmul(f, fTen)
		dd--
	}

	for fcomp(f, fScaleHi) >= 0 {
		f = u.fdiv(f, fTen)
		dd++
	}

	n := u.fltToInt(u.fadd(f, fHalf))

	if n >= 1000000 {
		n /= 10
		dd++
	}

	digits := fmt.Sprintf("%06d", n)

	//
	// dp is where the decimal point lands relative to the digit
	// string.  Inside [-1, 6] we print fixed notation, outside it
	// exponential
	//

	dp := 6 + dd

	if dp >= -1 && dp <= 6 {
		return lead + foutFixed(digits, dp) + " "
	}

	mant := strings.TrimRight(digits[1:], "0")
	if mant != "" {
		mant = "." + mant
	}

	esign := "+"
	e := dp - 1
	if e < 0 {
		esign = "-"
		e = -e
	}

	return fmt.Sprintf("%s%c%sE%s%02d ", lead, digits[0], mant, esign, e)
}

func foutFixed(digits string, dp int) string {

	var out string

	switch {
	case dp <= 0:
		out = "." + strings.Repeat("0", -dp) + digits

	case dp >= len(digits):
		out = digits + strings.Repeat("0", dp-len(digits))

	default:
		out = digits[:dp] + "." + digits[dp:]
	}

	if strings.Contains(out, ".") {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, ".")
	}

	if out == "" {
		out = "0"
	}

	return out
}

func isDigit(ch byte) bool {

	return ch >= '0' && ch <= '9'
}
