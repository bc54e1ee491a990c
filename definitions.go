package main

import (
	"sync/atomic"
	"time"

	"github.com/danswartzendruber/liner"
)

//
// Constants
//

const VERSION = "1.0.3"

const basFileSuffix = ".bas"

const readyPrompt = "OK"

const inputPrompt = "? "

//
// The interpreter address space is bounded to 16 bits, like the
// hardware it models.  The low region is reserved for the direct
// mode input buffer, so the program zone starts just past it
//

const maxMemory = 65536
const minMemory = 4096
const defaultMemory = maxMemory

const inputBufOrg = 16
const inputBufLen = 256
const programOrg = inputBufOrg + inputBufLen

const maxLineLen = 255
const maxLineNo = 65529

const minWidth = 32
const maxWidth = 255
const defaultWidth = 72

const zoneWidth = 14

const maxStringLen = 255

const forStackMax = 16
const gosubStackMax = 16

const maxImplicitSubscript = 10

//
// Variable entries are 2 name bytes plus a 4 byte value slot.
// Array headers are 2 name bytes, a 2 byte total size, a dimension
// count byte and a 2 byte element count per dimension
//

const varEntrySize = 6
const valueSize = 4

//
// Second name byte tag marking a string variable
//

const strNameTag = 0x80

const clearScreenSeq = "\033[2J"

//
// Run states.  stateStopped means halted but continuable: the resume
// position was captured and CONT may restart from it
//

const (
	stateHalted = iota
	stateRunning
	stateStopped
)

//
// Flow directives returned by the statement handlers.  The driver
// loop in runLoop is the only code that mutates the current position
//

const (
	flowNext = iota
	flowJump
	flowEnd
	flowStop
	flowHalt
)

//
// Type definitions
//

//
// An MBF floating point value in working form.  The packed form is 4
// bytes: biased exponent, then 3 mantissa bytes high to low, with the
// sign replacing the implicit leading one in the high mantissa byte.
// A zero exponent means the value is zero and the other fields are
// not meaningful
//

type mflt struct {
	mant uint32
	exp  byte
	sign byte
}

//
// The numeric engine never unwinds.  Anything that can fail records
// a condition here, and the caller checks it explicitly
//

type fpu struct {
	cond errCode
}

//
// A string descriptor.  References bytes inside the string heap; the
// offset is invalidated by any operation that can collect, and must
// be re-read afterward
//

type strDesc struct {
	off int
	ln  byte
}

//
// A value is either a number or a string descriptor
//

type value struct {
	num mflt
	dsc strDesc
	str bool
}

//
// A position inside the program text (or, for line == directLine,
// inside the direct mode input buffer)
//

type textPos struct {
	line int
	off  int
}

const directLine = -1

type flow struct {
	pos  textPos
	kind int
}

//
// A FOR frame references the loop variable's value slot by offset,
// not by name, so iteration doesn't repeat the lookup
//

type forFrame struct {
	limit  mflt
	step   mflt
	resume textPos
	varOff int
}

//
// A GOSUB frame remembers the FOR stack depth at call time; RETURN
// discards any loop opened inside the subroutine
//

type gosubFrame struct {
	resume   textPos
	forDepth int
}

//
// DEF FN table entry.  body is the position of the '=' expression in
// the program text, param the name of the dummy variable
//

type fnDef struct {
	body  textPos
	name  [2]byte
	param [2]byte
}

//
// Random generator state: three small counters plus the previous
// output, which doubles as the next seed
//

type rndState struct {
	seed    mflt
	mulCnt  byte
	addCnt  byte
	wrapCnt byte
}

//
// Print head state
//

type printer struct {
	width int
	pos   int
}

//
// One interpreter instance.  Everything an executing program can
// observe lives here, so independent instances share nothing
//

type machine struct {
	fpu

	mem []byte

	//
	// Zone boundaries, all byte offsets into mem.  Growth order is
	// fixed: program pushes vartab/arytab/strend up, strings grow
	// down from memsiz toward strend
	//

	txttab int
	vartab int
	arytab int
	strend int
	fretop int
	memsiz int

	rng rndState

	out printer

	//
	// Line input source and output sink.  The front end wires these
	// to a liner and stdout; the tests wire them to canned slices
	//

	readLine func(prompt string) (string, bool)
	write    func(s string)

	runState int
	curPos   textPos
	contPos  textPos

	forStack   []forFrame
	gosubStack []gosubFrame

	dataPos   textPos
	dataFresh bool

	fns []fnDef

	//
	// Temporary string descriptors created while evaluating an
	// expression.  The collector rewrites these in place, just like
	// the descriptors stored in the variable and array zones
	//

	temps []strDesc

	//
	// Descriptors held in Go locals while evaluation continues and
	// may allocate.  The collector rewrites these through the
	// pointers, so a pinned local never goes stale across a
	// compaction
	//

	guards []*strDesc

	interrupted atomic.Bool

	stmtCount int64
}

//
// Front end state: liners, CLI options and statistics.  Engine state
// deliberately does NOT live here, so that independent machine
// instances stay independent
//

var g struct {
	commandLiner *liner.State
	inputLiner   *liner.State
	memorySize   int
	width        int
	printStats   bool
	traceExec    bool
	traceDump    bool
	exiting      bool
}

//
// Runtime statistics for an executing program
//

var s struct {
	elapsed time.Time
	utime   int64
	stime   int64
}
