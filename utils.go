package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danswartzendruber/liner"
	"github.com/tklauser/go-sysconf"
	"golang.org/x/term"
)

//
// Ensure we are connected to a tty!
//

func checkTerminal() {

	if !term.IsTerminal(2) {
		crash("")
	}

	if !term.IsTerminal(0) {
		crash("Standard input must be a terminal")
	}

	if !term.IsTerminal(1) {
		crash("Standard output must be a terminal")
	}
}

//
// We create two Liner instances.  One for the command loop, and one
// for any INPUT statements.  We do this because we want a scrollback
// history for commands, but not for user input.  We need to create
// and destroy them in LIFO order, as the Close method is documented
// as 'restoring the terminal to its previous state'.  This means that
// if we create the command instance, and then the 'input' instance,
// the terminal state will go normal => raw => raw.  If we then Close
// them in reverse order, we will see raw => raw => normal
//

func setupLiners() {
	g.commandLiner = setupLiner(false)
	g.inputLiner = setupLiner(true)
}

func setupLiner(allowCtrlC bool) *liner.State {

	l := liner.NewLiner()

	l.SetMultiLineMode(allowCtrlC)

	return l
}

//
// Restore terminal state.  NB: we cannot call (or cause to be called)
// crash(), as that would recurse
//

func cleanupLiners() {
	cleanupLiner(&g.inputLiner)
	cleanupLiner(&g.commandLiner)
}

func cleanupLiner(linerState **liner.State) {

	if *linerState != nil {
		(*linerState).Close()
		*linerState = nil
	}
}

//
// Read a line from the terminal, with editing and optional history.
// A ^D at the start of the line reads as EOF, a ^C as an aborted
// prompt; both are reported to the caller rather than handled here
//

func readTerminalLine(l *liner.State, prompt string, history bool) (string, error) {

	s, err := l.Prompt(prompt)

	if err != nil {
		if err == io.EOF || err == liner.ErrPromptAborted {
			return "", err
		}

		crash(fmt.Sprintf("readTerminalLine error: %q\n", err))
	}

	if history && s != "" {
		l.AppendHistory(s)
	}

	return s, nil
}

//
// A handy 'assert' function for conditions that can only mean an
// interpreter bug, never a user error
//

func basicAssert(chk bool, msg string) {

	if !chk {
		crash(msg)
	}
}

//
// Print a fatal message and abort the process.  We write to standard
// error, since the user may have redirected standard output, and we
// would not see it then.  Also, dup os.Stdout, then close os.Stdout
// and os.Stderr in case another goroutine is writing to the terminal.
// Make sure to call cleanupLiners, so the terminal state is sane
//

func crash(msg string) {

	var w *os.File

	cleanupLiners()

	if msg != "" {
		fd, err := syscall.Dup(int(os.Stderr.Fd()))
		if err == nil {
			os.Stdout.Close()
			os.Stderr.Close()
			w = os.NewFile(uintptr(fd), "stdout on new fd")
		} else {
			w = os.Stderr
		}

		fmt.Fprintln(w, msg)
	}

	os.Exit(1)
}

//
// Initialize the clock
//

func initClock() {

	s.elapsed = time.Now()
	s.utime, s.stime = getCPUInfo(1)
}

func printCpuUsage() {

	elapsed := time.Since(s.elapsed)
	utime, stime := getCPUInfo(1)

	fmt.Printf("CPU Usage: elapsed = %s / user = %s / system = %s\n",
		formatCPUTime(int64(elapsed.Seconds())),
		formatCPUTime(utime-s.utime), formatCPUTime(stime-s.stime))
}

func formatCPUTime(t int64) string {

	var h, m int64

	if t >= 3600 {
		h = t / 3600
		t = t % 3600
	}

	if t >= 60 {
		m = t / 60
		t = t % 60
	}

	return fmt.Sprintf("%02d:%02d:%02d", h, m, t)
}

func getCPUInfo(divisor int64) (int64, int64) {

	clktck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil {
		panic(err)
	} else {
		clktck /= divisor
	}

	contents, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		panic(err)
	}

	fields := strings.Fields(string(contents))

	utime, err := strconv.ParseInt(fields[13], 10, 64)
	if err != nil {
		panic(err)
	}

	stime, err := strconv.ParseInt(fields[14], 10, 64)
	if err != nil {
		panic(err)
	}

	return utime / clktck, stime / clktck
}

func convertToMB(num uint64) uint64 {

	return num / (1024 * 1024)
}

func pluralize(str string, num int64) string {

	if num != 1 {
		str += "s"
	}

	return str
}

func printStatistics(m *machine) {

	var mem runtime.MemStats

	if g.printStats {
		fmt.Println()
		printCpuUsage()
		runtime.GC()
		runtime.ReadMemStats(&mem)
		fmt.Printf("%dMB memory used\n", convertToMB(mem.HeapAlloc))
		fmt.Printf("%d %s executed\n", m.stmtCount,
			pluralize("statement", m.stmtCount))
	}
}

func resetStatistics(m *machine) {

	s.utime = 0
	s.stime = 0
	m.stmtCount = 0
}
