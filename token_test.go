package main

import (
	"bytes"
	"testing"
)

func TestCrunchKeywords(t *testing.T) {
	got := crunch([]byte("PRINT X"))
	want := []byte{tokPrint, ' ', 'X'}
	if !bytes.Equal(got, want) {
		t.Fatalf("crunch = % x, want % x", got, want)
	}
}

func TestCrunchFoldsCase(t *testing.T) {
	a := crunch([]byte("print x+y"))
	b := crunch([]byte("PRINT X+Y"))
	if !bytes.Equal(a, b) {
		t.Fatalf("case folding differs: % x vs % x", a, b)
	}
}

func TestCrunchQuestionMark(t *testing.T) {
	got := crunch([]byte("? 1"))
	if len(got) == 0 || got[0] != tokPrint {
		t.Fatalf("? did not become PRINT: % x", got)
	}
	if s := detokenize(got); s != "PRINT 1" {
		t.Fatalf("detokenize = %q", s)
	}
}

func TestCrunchKeywordsInsideRun(t *testing.T) {
	// No spaces needed around keywords, exactly like the original
	got := crunch([]byte("FORI=1TO5"))
	want := []byte{tokFor, 'I', tokEQ, '1', tokTo, '5'}
	if !bytes.Equal(got, want) {
		t.Fatalf("crunch = % x, want % x", got, want)
	}
}

func TestCrunchQuotePreservesCase(t *testing.T) {
	src := `PRINT "Hello, world":print a`
	got := detokenize(crunch([]byte(src)))
	want := `PRINT "Hello, world":PRINT A`
	if got != want {
		t.Fatalf("round trip = %q, want %q", got, want)
	}
}

func TestCrunchRemSwallowsRest(t *testing.T) {
	src := "REM for i = 1 to 10"
	tokens := crunch([]byte(src))
	if tokens[0] != tokRem {
		t.Fatalf("no REM token: % x", tokens)
	}
	for _, c := range tokens[1:] {
		if c >= tokFirst {
			t.Fatalf("keyword crunched inside a remark: % x", tokens)
		}
	}
	if got := detokenize(tokens); got != src {
		t.Fatalf("remark text altered: %q", got)
	}
}

func TestCrunchDataVerbatim(t *testing.T) {
	src := "DATA Apple, Pear:PRINT 1"
	tokens := crunch([]byte(src))
	if tokens[0] != tokData {
		t.Fatalf("no DATA token: % x", tokens)
	}
	if got := detokenize(tokens); got != "DATA Apple, Pear:PRINT 1" {
		t.Fatalf("round trip = %q", got)
	}

	// The statement after the colon was crunched normally
	if !bytes.Contains(tokens, []byte{tokPrint}) {
		t.Fatalf("statement after DATA not crunched: % x", tokens)
	}
}

func TestCrunchDataQuoted(t *testing.T) {
	src := `DATA "A:B", C`
	if got := detokenize(crunch([]byte(src))); got != src {
		t.Fatalf("round trip = %q", got)
	}
}

func TestDetokenizeRoundTrip(t *testing.T) {
	sources := []string{
		"PRINT 1+2*3",
		`IF A>5 THEN PRINT "BIG"`,
		"FOR I=1 TO 10 STEP 2:NEXT I",
		"ON X GOSUB 100,200,300",
		"DEF FNA(X)=X*X",
		`A$=LEFT$("HELLO",2)+CHR$(65)`,
		"POKE 1000,PEEK(1000) AND 127",
		"IF X<>Y THEN 100",
		"PRINT TAB(10);SPC(2);RND(1)",
	}
	for _, src := range sources {
		if got := detokenize(crunch([]byte(src))); got != src {
			t.Fatalf("round trip of %q gave %q", src, got)
		}
	}
}

func TestMatchKeywordOrder(t *testing.T) {
	// STR$ must win over ST, LEFT$ over LET style prefixes; the
	// table is ordered first match
	tok, next := matchKeyword([]byte("STR$(X)"), 0)
	if tok != tokStr || next != 4 {
		t.Fatalf("STR$ matched as %#x, next %d", tok, next)
	}

	tok, next = matchKeyword([]byte("TO"), 0)
	if tok != tokTo || next != 2 {
		t.Fatalf("TO matched as %#x, next %d", tok, next)
	}

	tok, _ = matchKeyword([]byte("QQQ"), 0)
	if tok != 0 {
		t.Fatalf("nonsense matched as %#x", tok)
	}
}

func TestTokenText(t *testing.T) {
	cases := []struct {
		tok  byte
		want string
	}{
		{tokPrint, "PRINT"},
		{tokEnd, "END"},
		{tokTab, "TAB("},
		{tokStr, "STR$"},
		{tokEQ, "="},
		{tokRnd, "RND"},
	}
	for _, c := range cases {
		if got := tokenText(c.tok); got != c.want {
			t.Fatalf("tokenText(%#x) = %q, want %q", c.tok, got, c.want)
		}
	}
}
