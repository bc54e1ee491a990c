package main

//
// The random number generator.  Not a textbook PRNG: the original
// builds each value from a table-driven multiply/add, then scrambles
// the result's bytes in ways that are not arithmetic at all, and the
// renormalization deliberately folds the pre-scramble exponent back
// into the mantissa.  Two generators initialized identically and fed
// the same argument signs produce bit-identical sequences
//

//
// Multiplier and addend tables, in packed MBF form the way the
// original keeps them in ROM.  Addend slot 0 is never selected while
// advancing; it is only the initial seed
//

var rndMulTab = [8][4]byte{
	{0x98, 0x35, 0x44, 0x7A},
	{0x94, 0x12, 0x90, 0xC3},
	{0x9A, 0x60, 0x2F, 0x15},
	{0x96, 0x51, 0xE6, 0x68},
	{0x99, 0x0B, 0x7C, 0xD1},
	{0x93, 0x7E, 0xA4, 0x3C},
	{0x97, 0x28, 0x5B, 0x8E},
	{0x95, 0x46, 0x19, 0xF7},
}

var rndAddTab = [4][4]byte{
	{0x80, 0x28, 0xB1, 0x46},
	{0x87, 0x52, 0x3D, 0x69},
	{0x8B, 0x1C, 0x76, 0xA5},
	{0x85, 0x67, 0x08, 0xD2},
}

//
// Low byte scramble constant, and the advance count at which the
// extra mantissa adjustment fires
//

const rndXorByte = 0x5A
const rndWrapCount = 0x1B

func initRndState(rng *rndState) {

	rng.mulCnt = 0
	rng.addCnt = 0
	rng.wrapCnt = 0
	rng.seed = unpackFlt(rndAddTab[0][:])
}

//
// RND(x).  The sign of the argument selects the behavior: zero
// repeats the previous output, negative reseeds (the magnitude is
// ignored), positive advances the sequence and yields a value
// strictly between 0 and 1
//

func (m *machine) rnd(arg mflt) mflt {

	rng := &m.rng

	if arg.isZero() {
		return rng.seed
	}

	if arg.sign != 0 {
		initRndState(rng)
	}

	return m.rndAdvance()
}

func (m *machine) rndAdvance() mflt {

	rng := &m.rng

	//
	// Stage 1: multiply the seed by the next table multiplier, then
	// add the next addend.  The addend counter cycles 1, 2, 3 - slot
	// 0 is reserved for seeding
	//

	rng.mulCnt = (1 + rng.mulCnt) % 8
	f := m.fmul(rng.seed, unpackFlt(rndMulTab[rng.mulCnt][:]))

	rng.addCnt = rng.addCnt%3 + 1
	f = m.fadd(f, unpackFlt(rndAddTab[rng.addCnt][:]))

	//
	// The arithmetic can overflow for pathological seeds; the
	// scramble below forces the exponent anyway, so the condition is
	// not a caller-visible fault here
	//

	m.cond = errNone

	//
	// Stage 2: byte scramble.  Swap the low and high mantissa bytes,
	// XOR the new low byte, force the exponent to mid-range - and
	// then renormalize with the pre-scramble exponent loaded into
	// the extension byte, so its bits get shifted back in
	//

	preExp := f.exp

	lo := byte(f.mant)
	mid := byte(f.mant >> 8)
	hi := byte(f.mant >> 16)

	mant := uint32(lo)<<16 | uint32(mid)<<8 | uint32(hi^rndXorByte)

	f = m.fnorm(mant, preExp, int(expBias)-1, 0)
	m.cond = errNone

	//
	// Rounding inside the normalize can nudge the result up to
	// exactly 1; the output contract is strictly below it
	//

	if f.exp >= expBias {
		f.exp = expBias - 1
	}

	//
	// The wrap counter fires one extra adjustment of the stored
	// bytes every rndWrapCount advances
	//

	rng.wrapCnt++
	if rng.wrapCnt == rndWrapCount {
		rng.wrapCnt = 0
		if !f.isZero() {
			f.mant = (f.mant + 0x100) & mantMask
			f.mant |= mantMSB
		}
	}

	if f.isZero() {
		f = unpackFlt(rndAddTab[0][:])
	}

	rng.seed = f

	return f
}
