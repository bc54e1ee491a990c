package main

import (
	"testing"
)

// --- helpers ---------------------------------------------------------------

func newFpu(t *testing.T) *machine {
	t.Helper()
	return newMachine(defaultMemory, defaultWidth)
}

func wantInt(t *testing.T, m *machine, f mflt, n int) {
	t.Helper()
	got := m.fltToInt(f)
	if err := m.fpCheck(); err != errNone {
		t.Fatalf("fltToInt(%v) condition %v", f, err)
	}
	if got != n {
		t.Fatalf("want %d, got %d (%v)", n, got, f)
	}
}

func wantZero(t *testing.T, f mflt) {
	t.Helper()
	if !f.isZero() {
		t.Fatalf("want zero, got %v", f)
	}
}

func wantCond(t *testing.T, m *machine, want errCode) {
	t.Helper()
	if got := m.fpCheck(); got != want {
		t.Fatalf("want condition %v, got %v", want, got)
	}
}

// --- conversions -----------------------------------------------------------

func TestIntRoundTrip(t *testing.T) {
	m := newFpu(t)
	for _, n := range []int{0, 1, -1, 2, 7, 10, 100, 255, 256, 1000,
		32767, -32768, 65535, 65529, 1000000, 8388607, -8388607} {
		f := fltFromInt(n)
		wantInt(t, m, f, n)
	}
}

func TestFltToInt16Range(t *testing.T) {
	m := newFpu(t)

	if got := m.fltToInt16(fltFromInt(32767)); got != 32767 {
		t.Fatalf("want 32767, got %d", got)
	}
	wantCond(t, m, errNone)

	m.fltToInt16(fltFromInt(32768))
	wantCond(t, m, errFC)

	m.fltToInt16(fltFromInt(-32769))
	wantCond(t, m, errFC)
}

func TestFltToUint16Range(t *testing.T) {
	m := newFpu(t)

	if got := m.fltToUint16(fltFromInt(65535)); got != 65535 {
		t.Fatalf("want 65535, got %d", got)
	}
	wantCond(t, m, errNone)

	m.fltToUint16(fltFromInt(65536))
	wantCond(t, m, errFC)

	m.fltToUint16(fltFromInt(-1))
	wantCond(t, m, errFC)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	m := newFpu(t)

	vals := []mflt{
		fzero(),
		fltFromInt(1),
		fltFromInt(-1),
		fltFromInt(32767),
		fHalf,
		m.fdiv(fltFromInt(1), fltFromInt(3)),
		maxFlt(0),
		maxFlt(0x80),
	}
	m.fpCheck()

	var b [valueSize]byte
	for _, f := range vals {
		packFlt(f, b[:])
		if got := unpackFlt(b[:]); got != f {
			t.Fatalf("round trip of %v gave %v (bytes % x)", f, got, b)
		}
	}
}

func TestPackedZeroIsAllZero(t *testing.T) {
	var b [valueSize]byte
	packFlt(fzero(), b[:])
	for i, c := range b {
		if c != 0 {
			t.Fatalf("packed zero has byte %#x at %d", c, i)
		}
	}
}

// --- normalization ---------------------------------------------------------

func TestFnormAlreadyNormal(t *testing.T) {
	m := newFpu(t)

	f := mflt{mant: 0xC00000, exp: expBias, sign: 0}
	got := m.fnorm(f.mant, 0, int(f.exp), f.sign)
	if got != f {
		t.Fatalf("normalizing a normal value changed it: %v -> %v", f, got)
	}
	wantCond(t, m, errNone)
}

func TestFnormShiftsAndRounds(t *testing.T) {
	m := newFpu(t)

	// A lone extension bit climbs all 24 positions into the MSB slot
	got := m.fnorm(0, 0x80, expBias, 0)
	want := mflt{mant: mantMSB, exp: expBias - 24, sign: 0}
	if got != want {
		t.Fatalf("want %v, got %v", want, got)
	}

	// A pending half rounds the mantissa up
	got = m.fnorm(mantMSB, 0x80, expBias, 0)
	want = mflt{mant: mantMSB + 1, exp: expBias, sign: 0}
	if got != want {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestFnormUnderflowFlushesToZero(t *testing.T) {
	m := newFpu(t)

	got := m.fnorm(mantMSB, 0, 0, 0)
	wantZero(t, got)
	wantCond(t, m, errNone)
}

// --- add and subtract ------------------------------------------------------

func TestFaddBasics(t *testing.T) {
	m := newFpu(t)

	cases := []struct{ a, b, want int }{
		{1, 1, 2},
		{2, 3, 5},
		{100, -1, 99},
		{-5, -7, -12},
		{32767, 1, 32768},
		{0, 42, 42},
		{42, 0, 42},
	}
	for _, c := range cases {
		wantInt(t, m, m.fadd(fltFromInt(c.a), fltFromInt(c.b)), c.want)
	}
}

func TestFaddCancelsToCanonicalZero(t *testing.T) {
	m := newFpu(t)

	for _, n := range []int{1, 7, 100, 32767, -3} {
		f := fltFromInt(n)
		sum := m.fadd(f, fneg(f))
		wantZero(t, sum)
		if sum.exp != 0 || sum.sign != 0 || sum.mant != 0 {
			t.Fatalf("x + -x not canonical zero: %v", sum)
		}
	}
}

func TestFaddSwampedOperand(t *testing.T) {
	m := newFpu(t)

	big := fltFromInt(8388607)
	tiny := mflt{mant: mantMSB, exp: 2, sign: 0}
	if got := m.fadd(big, tiny); got != big {
		t.Fatalf("tiny addend should vanish, got %v", got)
	}
}

func TestFsub(t *testing.T) {
	m := newFpu(t)

	wantInt(t, m, m.fsub(fltFromInt(10), fltFromInt(3)), 7)
	wantInt(t, m, m.fsub(fltFromInt(3), fltFromInt(10)), -7)
}

func TestFaddHalves(t *testing.T) {
	m := newFpu(t)

	// 0.5 + 0.5 = 1 exactly
	one := m.fadd(fHalf, fHalf)
	if one != fltFromInt(1) {
		t.Fatalf("0.5 + 0.5 gave %v", one)
	}

	// 1.5 + 1.5 = 3
	oneHalf := m.fadd(fltFromInt(1), fHalf)
	wantInt(t, m, m.fadd(oneHalf, oneHalf), 3)
}

// --- multiply and divide ---------------------------------------------------

func TestFmulBasics(t *testing.T) {
	m := newFpu(t)

	cases := []struct{ a, b, want int }{
		{2, 3, 6},
		{10, 10, 100},
		{-2, 3, -6},
		{-2, -3, 6},
		{1, 12345, 12345},
		{12345, 1, 12345},
		{255, 255, 65025},
		{256, 256, 65536},
		{4095, 4095, 16769025},
	}
	for _, c := range cases {
		wantInt(t, m, m.fmul(fltFromInt(c.a), fltFromInt(c.b)), c.want)
	}
}

func TestFmulZero(t *testing.T) {
	m := newFpu(t)

	wantZero(t, m.fmul(fzero(), fltFromInt(99)))
	wantZero(t, m.fmul(fltFromInt(99), fzero()))
	wantCond(t, m, errNone)
}

func TestFmulFraction(t *testing.T) {
	m := newFpu(t)

	// 1.5 * 2 = 3
	oneHalf := m.fadd(fltFromInt(1), fHalf)
	wantInt(t, m, m.fmul(oneHalf, fltFromInt(2)), 3)

	// 0.5 * 0.5 = 0.25, times 4 back to 1
	quarter := m.fmul(fHalf, fHalf)
	wantInt(t, m, m.fmul(quarter, fltFromInt(4)), 1)
}

func TestFmulOverflow(t *testing.T) {
	m := newFpu(t)

	big := mflt{mant: mantMSB, exp: 250, sign: 0}
	got := m.fmul(big, big)
	wantCond(t, m, errOV)
	if got != maxFlt(0) {
		t.Fatalf("overflow should clamp, got %v", got)
	}
}

func TestFmulUnderflowFlushes(t *testing.T) {
	m := newFpu(t)

	tiny := mflt{mant: mantMSB, exp: 2, sign: 0}
	wantZero(t, m.fmul(tiny, tiny))
	wantCond(t, m, errNone)
}

func TestFdivBasics(t *testing.T) {
	m := newFpu(t)

	cases := []struct{ a, b, want int }{
		{6, 2, 3},
		{100, 10, 10},
		{-6, 2, -3},
		{6, -2, -3},
		{-6, -2, 3},
		{12345, 1, 12345},
		{65536, 256, 256},
	}
	for _, c := range cases {
		wantInt(t, m, m.fdiv(fltFromInt(c.a), fltFromInt(c.b)), c.want)
	}
}

func TestFdivByZero(t *testing.T) {
	m := newFpu(t)

	m.fdiv(fltFromInt(1), fzero())
	wantCond(t, m, errDV0)
}

func TestFdivZeroNumerator(t *testing.T) {
	m := newFpu(t)

	wantZero(t, m.fdiv(fzero(), fltFromInt(7)))
	wantCond(t, m, errNone)
}

func TestFdivThenFmulRestores(t *testing.T) {
	m := newFpu(t)

	third := m.fdiv(fltFromInt(1), fltFromInt(3))
	back := m.fmul(third, fltFromInt(3))
	if err := m.fpCheck(); err != errNone {
		t.Fatalf("condition %v", err)
	}
	if got := m.fout(back); got != " 1 " {
		t.Fatalf("(1/3)*3 printed %q", got)
	}
}

// --- compare, sign, floor --------------------------------------------------

func TestFcomp(t *testing.T) {
	cases := []struct {
		a, b int
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{5, 5, 0},
		{-1, 1, -1},
		{1, -1, 1},
		{-2, -1, -1},
		{-1, -2, 1},
		{0, 0, 0},
		{0, 3, -1},
		{-3, 0, -1},
	}
	for _, c := range cases {
		if got := fcomp(fltFromInt(c.a), fltFromInt(c.b)); got != c.want {
			t.Fatalf("fcomp(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestFsgn(t *testing.T) {
	m := newFpu(t)

	wantInt(t, m, fsgn(fltFromInt(42)), 1)
	wantInt(t, m, fsgn(fltFromInt(-42)), -1)
	wantZero(t, fsgn(fzero()))
}

func TestFintFloors(t *testing.T) {
	m := newFpu(t)

	cases := []struct {
		num, den int
		want     int
	}{
		{5, 2, 2},    // 2.5 -> 2
		{-5, 2, -3},  // -2.5 -> -3
		{4, 2, 2},    // exact stays put
		{-4, 2, -2},
		{1, 2, 0},
		{-1, 2, -1},
		{7, 1, 7},
	}
	for _, c := range cases {
		f := m.fdiv(fltFromInt(c.num), fltFromInt(c.den))
		wantInt(t, m, m.fint(f), c.want)
	}
}

func TestFnegFabs(t *testing.T) {
	m := newFpu(t)

	wantInt(t, m, fneg(fltFromInt(5)), -5)
	wantInt(t, m, fabs(fltFromInt(-5)), 5)
	wantInt(t, m, fabs(fltFromInt(5)), 5)
	wantZero(t, fneg(fzero()))
}
