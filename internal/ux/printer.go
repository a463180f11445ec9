package ux

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Printer writes user-facing output. In quiet mode only errors are printed.
type Printer struct {
	ctx    Context
	styles Styles
}

// NewPrinter returns a Printer for ctx.
func NewPrinter(ctx Context) *Printer {
	if ctx.Out == nil {
		ctx.Out = io.Discard
	}
	if ctx.ErrOut == nil {
		ctx.ErrOut = ctx.Out
	}
	return &Printer{ctx: ctx, styles: NewStyles(ctx)}
}

// Context returns the presentation context.
func (p *Printer) Context() Context { return p.ctx }

// Out is the writer for regular output (tool stdout, simulated traces).
func (p *Printer) Out() io.Writer { return p.ctx.Out }

// ErrOut is the writer for diagnostics, including tool stderr.
func (p *Printer) ErrOut() io.Writer { return p.ctx.ErrOut }

func (p *Printer) printf(format string, args ...interface{}) {
	if p.ctx.Quiet {
		return
	}
	fmt.Fprintf(p.ctx.Out, format, args...)
}

// Println prints a plain line.
func (p *Printer) Println(line string) { p.printf("%s\n", line) }

// Success prints "✅ msg".
func (p *Printer) Success(msg string) {
	p.printf("%s\n", p.styles.Success.Render("✅ "+msg))
}

// Info prints an informational line.
func (p *Printer) Info(msg string) {
	p.printf("%s\n", p.styles.Info.Render(msg))
}

// Warn prints "⚠️  msg".
func (p *Printer) Warn(msg string) {
	p.printf("%s\n", p.styles.Warning.Render("⚠️  "+msg))
}

// Banner prints a step heading.
func (p *Printer) Banner(title string) {
	p.printf("%s\n", p.styles.Bold.Render("🔧 "+title))
}

// Result prints a completed operation with its output path and timing:
// "✅ Proof generated → target/bb/proof (1.2s)".
func (p *Printer) Result(op, path string, elapsed time.Duration) {
	p.printf("%s %s %s\n",
		p.styles.Success.Render("✅ "+op),
		p.styles.Muted.Render("→"),
		p.styles.Path.Render(path)+p.styles.Muted.Render(fmt.Sprintf(" (%s)", FormatDuration(elapsed))))
}

// NextSteps prints a "🎯 Next steps:" list.
func (p *Printer) NextSteps(steps ...string) {
	if len(steps) == 0 {
		return
	}
	title := "🎯 Next steps:"
	if len(steps) == 1 {
		title = "🎯 Next step:"
	}
	p.printf("\n%s\n", p.styles.Bold.Render(title))
	for _, s := range steps {
		p.printf("  • %s\n", s)
	}
}

// Summary prints the operations collected in s with total time.
func (p *Printer) Summary(s *Summary) {
	if s == nil || len(s.ops) == 0 {
		return
	}
	p.printf("\n%s\n", p.styles.Bold.Render(fmt.Sprintf("📋 Summary (%s)", FormatDuration(s.Elapsed()))))
	for _, op := range s.ops {
		p.printf("  • %s\n", op)
	}
}

// Error prints err to the error writer, with suggestions when err carries
// them. Quiet mode does not suppress errors.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(p.ctx.ErrOut, p.FormatError(err))
}

// suggester is implemented by errors that carry remediation hints.
type suggester interface {
	Suggestions() []string
}

// FormatError renders "❌ msg" plus a "💡 Suggestions:" block.
func (p *Printer) FormatError(err error) string {
	var b strings.Builder
	b.WriteString(p.styles.Error.Render("❌ " + err.Error()))

	var s suggester
	if errors.As(err, &s) && len(s.Suggestions()) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.styles.Info.Render("💡 Suggestions:"))
		for _, hint := range s.Suggestions() {
			b.WriteString("\n   • ")
			b.WriteString(hint)
		}
	}
	return b.String()
}

// Summary collects completed operations for the end-of-workflow report.
type Summary struct {
	start time.Time
	ops   []string
}

// NewSummary starts a summary clock.
func NewSummary() *Summary { return &Summary{start: time.Now()} }

// Add records one operation.
func (s *Summary) Add(op string) { s.ops = append(s.ops, op) }

// Operations returns the recorded operations.
func (s *Summary) Operations() []string { return append([]string(nil), s.ops...) }

// Elapsed is the time since NewSummary.
func (s *Summary) Elapsed() time.Duration { return time.Since(s.start) }

// FormatDuration renders step timings ("250ms", "1.5s", "2m5s").
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%ds", m, s)
	}
}

// FileSize renders the size of path ("1.2 KB"), or "unknown size".
func FileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return FormatBytes(fi.Size())
}

// FormatBytes renders n bytes with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
