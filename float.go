package main

//
// The MBF numeric engine.  Everything here works on 24-bit mantissas
// with the leading one explicit (bit 23), a biased exponent and a
// detached sign, plus an 8-bit extension byte that collects the bits
// falling off the low end of a shift.  The extension byte is what
// the original hardware kept in a spare register, and the rounding
// decision is always made from its high bit - never from a separate
// rounding rule.  Do not "simplify" the multiply to a 64-bit widening
// multiply: the rounding artifacts at half-way mantissa values come
// from the exact bit path below
//

//
// Exponent bias is 129 everywhere except the multiply exponent-sum
// step, where the original folds one doubling into the mantissa path
// and uses 128.  Both are load-bearing
//

const expBias = 129
const mulBias = 128

const mantMSB = 0x800000
const mantMask = 0xFFFFFF

func fzero() mflt {

	return mflt{}
}

func (f mflt) isZero() bool {

	return f.exp == 0
}

//
// Largest representable magnitude, returned on overflow so the
// caller has something sane to propagate after checking the condition
//

func maxFlt(sign byte) mflt {

	return mflt{exp: 255, sign: sign, mant: mantMask}
}

func fneg(f mflt) mflt {

	if f.isZero() {
		return f
	}

	f.sign ^= 0x80

	return f
}

func fabs(f mflt) mflt {

	f.sign = 0

	return f
}

//
// Normalize a (mantissa, extension) pair: shift left one bit at a
// time, pulling extension bits up through the carry, until the
// mantissa MSB is set, then round from the high bit of the extension
// byte.  Exact zero always yields the canonical zero encoding.
// The random generator reuses this path with the pre-scramble
// exponent loaded into the extension byte, which is how the original
// mixes those bits back in
//

func (u *fpu) fnorm(mant uint32, ext byte, exp int, sign byte) mflt {

	if mant == 0 && ext == 0 {
		return fzero()
	}

	for mant&mantMSB == 0 {
		mant = mant<<1&mantMask | uint32(ext>>7)
		ext <<= 1
		exp--

		if exp <= 0 {
			u.cond = errUF0
			return fzero()
		}
	}

	//
	// Round from the bit that fell out of the shift
	//

	if ext&0x80 != 0 {
		mant++
		if mant > mantMask {
			mant >>= 1
			exp++
		}
	}

	if exp > 255 {
		u.cond = errOV
		return maxFlt(sign)
	} else if exp <= 0 {
		u.cond = errUF0
		return fzero()
	}

	return mflt{mant: mant, exp: byte(exp), sign: sign}
}

//
// Addition.  The operand with the smaller exponent is shifted right
// by the exponent difference, low bits collecting in the extension
// byte and anything beyond that discarded as too small to matter.
// Magnitudes are then added or subtracted depending on sign equality.
// A carry out of the 24-bit mantissa shifts the whole unit right and
// bumps the exponent; exact cancellation yields canonical zero
//

func (u *fpu) fadd(a, b mflt) mflt {

	if a.isZero() {
		return b
	} else if b.isZero() {
		return a
	}

	if b.exp > a.exp {
		a, b = b, a
	}

	diff := int(a.exp) - int(b.exp)
	if diff > 31 {
		return a
	}

	wa := uint64(a.mant) << 8
	wb := uint64(b.mant) << 8 >> uint(diff)

	exp := int(a.exp)
	sign := a.sign

	var wide uint64

	if a.sign == b.sign {
		wide = wa + wb
		if wide >= 1<<32 {
			wide >>= 1
			exp++
		}
	} else {
		if wa == wb {
			return fzero()
		}

		if wa > wb {
			wide = wa - wb
		} else {
			wide = wb - wa
			sign ^= 0x80
		}
	}

	return u.fnorm(uint32(wide>>8), byte(wide), exp, sign)
}

func (u *fpu) fsub(a, b mflt) mflt {

	return u.fadd(a, fneg(b))
}

//
// Multiplication, at the level of the original's shift-and-add
// register algorithm.  The multiplier mantissa is consumed one bit
// at a time out of a byte-at-a-time register window, low byte first.
// A set bit adds the multiplicand into the accumulator; either way
// the carry, the accumulator and the extension byte then rotate
// right as a single unit.  After 24 bits the accumulator holds the
// high half of the product, normalized by at most one left shift
//

func mulMantissa(mcand, mplr uint32) (uint32, byte) {

	var acc uint32
	var ext byte

	for i := 0; i < 3; i++ {
		win := byte(mplr >> (8 * uint(i)))

		for j := 0; j < 8; j++ {
			var carry uint32

			if win&1 != 0 {
				acc += mcand
				carry = acc >> 24
				acc &= mantMask
			}

			win >>= 1

			ext = ext>>1 | byte(acc&1)<<7
			acc = acc>>1 | carry<<23
		}
	}

	return acc, ext
}

func (u *fpu) fmul(a, b mflt) mflt {

	if a.isZero() || b.isZero() {
		return fzero()
	}

	exp := int(a.exp) + int(b.exp) - mulBias
	sign := a.sign ^ b.sign

	mant, ext := mulMantissa(a.mant, b.mant)

	return u.fnorm(mant, ext, exp, sign)
}

//
// Division: 64-bit exact integer division of the shifted dividend.
// The quotient of two normalized mantissas lands on one side or the
// other of unity, so it is normalized by one bit up or down and the
// rounding bit comes from whatever fell off that adjustment
//

func (u *fpu) fdiv(a, b mflt) mflt {

	if b.isZero() {
		u.cond = errDV0
		return fzero()
	} else if a.isZero() {
		return a
	}

	exp := int(a.exp) - int(b.exp) + expBias
	sign := a.sign ^ b.sign

	num := uint64(a.mant) << 24
	q := uint32(num / uint64(b.mant))
	rem := num % uint64(b.mant)

	var ext byte

	if q > mantMask {
		ext = byte(q&1) << 7
		q >>= 1
	} else {
		exp--
		if 2*rem >= uint64(b.mant) {
			ext = 0x80
		}
	}

	return u.fnorm(q, ext, exp, sign)
}

//
// Comparison is sign first, then exponent, then mantissa - never a
// floating subtraction.  Returns -1, 0 or 1 as a is less than, equal
// to or greater than b
//

func fcomp(a, b mflt) int {

	if a.isZero() && b.isZero() {
		return 0
	} else if a.isZero() {
		if b.sign != 0 {
			return 1
		}
		return -1
	} else if b.isZero() {
		if a.sign != 0 {
			return -1
		}
		return 1
	}

	if a.sign != b.sign {
		if a.sign != 0 {
			return -1
		}
		return 1
	}

	//
	// Same sign: compare magnitudes, then account for direction
	//

	mag := 0

	if a.exp != b.exp {
		if a.exp > b.exp {
			mag = 1
		} else {
			mag = -1
		}
	} else if a.mant != b.mant {
		if a.mant > b.mant {
			mag = 1
		} else {
			mag = -1
		}
	}

	if a.sign != 0 {
		mag = -mag
	}

	return mag
}

//
// SGN: -1, 0 or 1 as an MBF value
//

func fsgn(f mflt) mflt {

	if f.isZero() {
		return fzero()
	}

	one := fltFromInt(1)
	one.sign = f.sign

	return one
}

//
// INT: floor toward negative infinity, not toward zero
//

func (u *fpu) fint(a mflt) mflt {

	if a.isZero() || a.exp >= expBias+23 {
		return a
	}

	//
	// Magnitude below one: 0, or -1 for a negative fraction
	//

	if a.exp < expBias {
		if a.sign != 0 {
			return fneg(fltFromInt(1))
		}
		return fzero()
	}

	shift := uint(expBias + 23 - int(a.exp))
	frac := a.mant & (1<<shift - 1)
	mant := a.mant >> shift

	if a.sign != 0 && frac != 0 {
		mant++
	}

	return u.fnorm(mant, 0, expBias+23, a.sign)
}

//
// Integer conversions.  fltFromInt handles the full 16-bit range and
// a bit beyond (line numbers run to 65529); fltToInt truncates and
// range checks, recording an illegal-quantity condition when the
// value cannot fit
//

func fltFromInt(n int) mflt {

	var sign byte

	if n == 0 {
		return fzero()
	} else if n < 0 {
		sign = 0x80
		n = -n
	}

	mant := uint32(n)
	exp := expBias + 23

	basicAssert(mant <= mantMask, "Integer too wide for mantissa")

	for mant&mantMSB == 0 {
		mant <<= 1
		exp--
	}

	return mflt{mant: mant, exp: byte(exp), sign: sign}
}

func (u *fpu) fltToInt(f mflt) int {

	if f.isZero() {
		return 0
	}

	if f.exp > expBias+23 {
		u.cond = errFC
		return 0
	}

	n := int(f.mant >> uint(expBias+23-int(f.exp)))

	if f.sign != 0 {
		n = -n
	}

	return n
}

//
// Conversion for contexts that want a signed 16-bit quantity
// (subscripts, POKE values and the like)
//

func (u *fpu) fltToInt16(f mflt) int {

	n := u.fltToInt(f)

	if n < -32768 || n > 32767 {
		u.cond = errFC
		return 0
	}

	return n
}

//
// Conversion for address and line number contexts: 0..65535
//

func (u *fpu) fltToUint16(f mflt) int {

	n := u.fltToInt(f)

	if n < 0 || n > 65535 {
		u.cond = errFC
		return 0
	}

	return n
}

//
// Packed form: exponent byte, then three mantissa bytes high to low
// with the sign replacing the always-set leading mantissa bit
//

func packFlt(f mflt, b []byte) {

	b[0] = f.exp

	if f.exp == 0 {
		b[1], b[2], b[3] = 0, 0, 0
		return
	}

	b[1] = byte(f.mant>>16)&0x7F | f.sign
	b[2] = byte(f.mant >> 8)
	b[3] = byte(f.mant)
}

func unpackFlt(b []byte) mflt {

	if b[0] == 0 {
		return fzero()
	}

	return mflt{
		exp:  b[0],
		sign: b[1] & 0x80,
		mant: mantMSB | uint32(b[1]&0x7F)<<16 | uint32(b[2])<<8 | uint32(b[3]),
	}
}
