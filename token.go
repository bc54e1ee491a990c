package main

//
// Keyword tokens.  Program text is stored crunched: every reserved
// word collapses to a single byte with the high bit set, everything
// else stays as ASCII.  The token values double as dispatch indices,
// so the table order is load bearing
//

const (
	tokEnd byte = 0x80 + iota
	tokFor
	tokNext
	tokData
	tokInput
	tokDim
	tokRead
	tokLet
	tokGoto
	tokRun
	tokIf
	tokRestore
	tokGosub
	tokReturn
	tokRem
	tokStop
	tokOn
	tokDef
	tokPoke
	tokPrint
	tokCont
	tokList
	tokClear
	tokNew
	tokSave
	tokLoad
	tokTab
	tokTo
	tokFn
	tokSpc
	tokThen
	tokNot
	tokStep
	tokPlus
	tokMinus
	tokMul
	tokDiv
	tokAnd
	tokOr
	tokGT
	tokEQ
	tokLT
	tokSgn
	tokInt
	tokAbs
	tokFre
	tokPos
	tokPeek
	tokLen
	tokStr
	tokVal
	tokAsc
	tokChr
	tokLeft
	tokRight
	tokMid
	tokRnd
)

const (
	tokFirst     = tokEnd
	tokLastStmt  = tokLoad
	tokFirstFunc = tokSgn
	tokLast      = tokRnd
)

var keywords = []string{
	"END", "FOR", "NEXT", "DATA", "INPUT", "DIM", "READ", "LET",
	"GOTO", "RUN", "IF", "RESTORE", "GOSUB", "RETURN", "REM",
	"STOP", "ON", "DEF", "POKE", "PRINT", "CONT", "LIST", "CLEAR",
	"NEW", "SAVE", "LOAD",
	"TAB(", "TO", "FN", "SPC(", "THEN", "NOT", "STEP",
	"+", "-", "*", "/", "AND", "OR", ">", "=", "<",
	"SGN", "INT", "ABS", "FRE", "POS", "PEEK", "LEN", "STR$",
	"VAL", "ASC", "CHR$", "LEFT$", "RIGHT$", "MID$", "RND",
}

func tokenText(t byte) string {

	basicAssert(t >= tokFirst && t <= tokLast, "Bad token value")

	return keywords[t-tokFirst]
}

func isLetter(c byte) bool {

	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func toUpper(c byte) byte {

	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

//
// Match one keyword at position i, case blind.  First match in
// table order wins, exactly like the original ROM scan, so text
// that happens to contain a reserved word gets crunched too
//

func matchKeyword(b []byte, i int) (byte, int) {

	for k, kw := range keywords {
		j := 0

		for ; j < len(kw); j++ {
			if i+j >= len(b) || toUpper(b[i+j]) != kw[j] {
				break
			}
		}

		if j == len(kw) {
			return tokFirst + byte(k), i + j
		}
	}

	return 0, i
}

//
// Crunch a raw statement body into token form.  Quoted strings pass
// through untouched, a REM swallows the rest of the line verbatim,
// and a DATA suppresses crunching up to the next colon.  Letters
// outside quotes fold to upper case.  The question mark shorthand
// expands to PRINT
//

func crunch(src []byte) []byte {

	out := make([]byte, 0, len(src))
	i := 0
	dataMode := false

	for i < len(src) {
		c := src[i]

		switch {

		default:
			if dataMode {
				if c == ':' {
					dataMode = false
				}
				out = append(out, c)
				i++
				break
			}

			if c == '?' {
				out = append(out, tokPrint)
				i++
				break
			}

			if t, next := matchKeyword(src, i); t != 0 {
				out = append(out, t)
				i = next

				if t == tokRem {
					out = append(out, src[i:]...)
					i = len(src)
				} else if t == tokData {
					dataMode = true
				}

				break
			}

			out = append(out, toUpper(c))
			i++

		case c == '"':
			out = append(out, c)
			i++

			for i < len(src) {
				out = append(out, src[i])
				i++

				if src[i-1] == '"' {
					break
				}
			}
		}
	}

	return out
}

//
// Expand crunched text back to source form, for LIST and SAVE
//

func detokenize(tokens []byte) string {

	out := make([]byte, 0, len(tokens)*2)

	for _, c := range tokens {
		if c >= tokFirst && c <= tokLast {
			out = append(out, tokenText(c)...)
		} else {
			out = append(out, c)
		}
	}

	return string(out)
}
