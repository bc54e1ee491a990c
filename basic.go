package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/danswartzendruber/liner"
	"github.com/goforj/godump"
	"golang.org/x/term"
)

func main() {

	//
	// We need to close the Liner instances in reverse order, to make
	// sure we end up back in normal (cooked) terminal mode
	//

	defer func() {
		cleanupLiners()
	}()

	progName := parseArgs()

	checkTerminal()

	setupWidth()

	setupLiners()

	m := newMachine(g.memorySize, g.width)

	m.write = func(str string) {
		fmt.Print(str)
	}

	m.readLine = func(prompt string) (string, bool) {
		line, err := readTerminalLine(g.inputLiner, prompt, false)
		if err != nil {
			return "", false
		}

		return line, true
	}

	//
	// Run the signal handling code in a goroutine
	//

	go sigHdlr(m)

	printVersionInfo(m)

	if progName != "" {
		if err := m.loadFromFile(progName); err != errNone {
			m.reportError(err)
		}
	}

	//
	// Loop forever, or until we quit
	//

	for !g.exiting {
		commandLoop(m)
	}
}

func parseArgs() string {

	memSize := flag.Int("mem", defaultMemory, "interpreter memory size in bytes")
	width := flag.Int("width", 0, "output width in columns (0 = from terminal)")
	flag.BoolVar(&g.printStats, "stats", false, "print execution statistics")
	flag.BoolVar(&g.traceExec, "trace", false, "trace executed line numbers")
	flag.BoolVar(&g.traceDump, "dump", false, "dump interpreter state after each command")

	flag.Parse()

	if *memSize < minMemory || *memSize > maxMemory {
		crash(fmt.Sprintf("Memory size must be between %d and %d",
			minMemory, maxMemory))
	}

	g.memorySize = *memSize
	g.width = *width

	switch flag.NArg() {

	default:
		crash("Usage: basic80 [options] [program]")

	case 0:
		return ""

	case 1:
		return flag.Arg(0)
	}

	panic(nil) // avoid compiler complaint
}

//
// Pick the output width: an explicit flag wins, else the terminal
// geometry, clamped to the supported range
//

func setupWidth() {

	if g.width == 0 {
		cols, _, err := term.GetSize(0)
		if err != nil {
			cols = defaultWidth
		}

		g.width = cols
	}

	if g.width < minWidth {
		g.width = minWidth
	} else if g.width > maxWidth {
		g.width = maxWidth
	}
}

func printVersionInfo(m *machine) {

	fmt.Printf("BASIC-80 version %s\n", VERSION)
	fmt.Printf("%d BYTES FREE\n", m.freeSpace())
}

//
// One prompt round: print the ready prompt, read a command line,
// hand it to the machine
//

func commandLoop(m *machine) {

	fmt.Println(readyPrompt)

	line, err := readTerminalLine(g.commandLiner, "", true)
	if err != nil {
		if err == liner.ErrPromptAborted {
			m.interrupted.Store(false)
			return
		}

		g.exiting = true
		return
	}

	resetStatistics(m)
	initClock()

	m.processLine(line)

	m.newlineIfNeeded()

	printStatistics(m)

	if g.traceDump {
		dumpMachineState(m)
	}
}

//
// The -dump trace.  The raw buffer is not interesting, the zone
// boundaries and control state are
//

func dumpMachineState(m *machine) {

	godump.Dump(struct {
		Txttab, Vartab, Arytab, Strend, Fretop int
		RunState                               int
		CurLine, ContLine                      int
		ForDepth, GosubDepth                   int
		Statements                             int64
	}{
		Txttab:     m.txttab,
		Vartab:     m.vartab,
		Arytab:     m.arytab,
		Strend:     m.strend,
		Fretop:     m.fretop,
		RunState:   m.runState,
		CurLine:    m.curPos.line,
		ContLine:   m.contPos.line,
		ForDepth:   len(m.forStack),
		GosubDepth: len(m.gosubStack),
		Statements: m.stmtCount,
	})
}

func writeGoroutineStacks() {

	name := "goroutines-stacks"
	mode := (os.O_CREATE | os.O_WRONLY)

	dumpFile, err := os.OpenFile(name, mode, 0644)
	if err != nil {
		iErr := err.(*os.PathError)
		fmt.Fprintf(os.Stderr, "Unable to open %s (%s)\n",
			name, iErr.Err.Error())
		return
	}

	_ = pprof.Lookup("goroutine").WriteTo(dumpFile, 2)

	msg := fmt.Sprintf("Dumping goroutine stacks to %v and exiting", name)

	crash(msg)
}

func sigHdlr(m *machine) {

	ch := make(chan os.Signal, 1)

	signal.Ignore(syscall.SIGTSTP)

	signal.Notify(ch, syscall.SIGQUIT)
	signal.Notify(ch, syscall.SIGINT)

	for {
		sig := <-ch

		switch sig {

		default:
			crash(fmt.Sprintf("Unexpected signal %d", sig))

		case syscall.SIGQUIT:
			writeGoroutineStacks() // does not return

		case syscall.SIGINT:
			m.interrupted.Store(true)
		}
	}
}
