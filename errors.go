package main

import "fmt"

//
// Errors are small result codes, not exceptions.  Every fallible
// statement handler returns one, and the driver loop is the only
// place that turns a non-zero code into a message and a halt.
// Numeric faults are different: the numeric engine records them on
// the fpu condition field, and callers collect the condition after
// each arithmetic call (see fpCheck)
//

type errCode int8

const (
	errNone errCode = iota
	errNF           // NEXT without FOR
	errSN           // syntax
	errRG           // RETURN without GOSUB
	errOD           // out of data
	errFC           // illegal function call
	errOV           // overflow
	errOM           // out of memory
	errUS           // undefined statement (line target)
	errBS           // bad subscript
	errDD           // redimensioned array
	errDV0          // division by zero
	errID           // illegal direct
	errTM           // type mismatch
	errOS           // out of string space
	errLS           // string too long
	errST           // string formula too complex
	errCN           // can't continue
	errUF           // undefined user function
	errUX           // internal botch, should be impossible
)

var errNames = [...]string{
	errNone: "",
	errNF:   "NF",
	errSN:   "SN",
	errRG:   "RG",
	errOD:   "OD",
	errFC:   "FC",
	errOV:   "OV",
	errOM:   "OM",
	errUS:   "US",
	errBS:   "BS",
	errDD:   "DD",
	errDV0:  "/0",
	errID:   "ID",
	errTM:   "TM",
	errOS:   "OS",
	errLS:   "LS",
	errST:   "ST",
	errCN:   "CN",
	errUF:   "UF",
	errUX:   "UX",
}

//
// Format an error the way the original does: the two letter code,
// and the originating line number unless the statement came from
// direct mode input
//

func errorMessage(err errCode, line int) string {

	basicAssert(err > errNone && int(err) < len(errNames), "Bad error code")

	msg := fmt.Sprintf("?%s ERROR", errNames[err])

	if line != directLine {
		msg += fmt.Sprintf(" IN %d", line)
	}

	return msg
}

//
// Collect the numeric condition, if any, clearing it for the next
// arithmetic call.  Underflowed results have already been forced to
// zero by the engine and are not errors at statement level
//

func (m *machine) fpCheck() errCode {

	cond := m.cond
	m.cond = errNone

	if cond == errUF0 {
		return errNone
	}

	return cond
}

//
// The numeric engine distinguishes underflow internally (a result
// too small to represent, silently flushed to zero) from the caller
// visible faults.  It is folded away by fpCheck
//

const errUF0 errCode = -1
