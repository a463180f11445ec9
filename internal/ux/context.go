// Package ux renders bargo's terminal output. Nothing here reads global
// color state: every call goes through a Context built once at startup.
package ux

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Context is the presentation context passed to every formatting call.
type Context struct {
	Out     io.Writer
	ErrOut  io.Writer
	Profile termenv.Profile
	Dark    bool
	Quiet   bool
}

// Plain returns a colorless context writing to out, used by tests and
// non-terminal callers.
func Plain(out io.Writer) Context {
	return Context{Out: out, ErrOut: out, Profile: termenv.Ascii}
}

// Detect builds a Context for stdout/stderr. mode is the configured color
// mode (auto, always, never); noColor forces never.
func Detect(mode string, noColor, quiet bool) Context {
	return Context{
		Out:     os.Stdout,
		ErrOut:  os.Stderr,
		Profile: ResolveProfile(mode, noColor, isTerminal(os.Stdout)),
		Dark:    darkBackground(os.Getenv("COLORFGBG")),
		Quiet:   quiet,
	}
}

// ResolveProfile picks the color profile from the mode and whether stdout is
// a terminal.
func ResolveProfile(mode string, noColor, tty bool) termenv.Profile {
	if noColor || mode == "never" {
		return termenv.Ascii
	}
	if mode == "always" {
		if p := termenv.EnvColorProfile(); p != termenv.Ascii {
			return p
		}
		return termenv.ANSI256
	}
	if !tty {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// Colored reports whether the context emits escape sequences.
func (c Context) Colored() bool { return c.Profile != termenv.Ascii }

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// darkBackground reads COLORFGBG ("fg;bg"); background indexes 0-6 and 8
// are dark. Unknown means light.
func darkBackground(colorfgbg string) bool {
	parts := strings.Split(colorfgbg, ";")
	if len(parts) < 2 {
		return false
	}
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false
	}
	return (bg >= 0 && bg <= 6) || bg == 8
}
