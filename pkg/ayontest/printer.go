package ayontest

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ynput/ayonfixt/pkg/fixture"
)

// Printer writes progress lines for long running fixtures. Lines are
// indented by scope so session output stands apart from test output.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	indent string
	logger *slog.Logger
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer, indent string, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Printer{w: w, indent: indent, logger: logger}
}

// Print writes msg, one indented line per input line. Empty messages are dropped.
func (p *Printer) Print(msg string) {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return
	}
	p.logger.Debug(msg)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range strings.Split(msg, "\n") {
		fmt.Fprintf(p.w, "%s%s\n", p.indent, line)
	}
}

// Printf formats and prints
func (p *Printer) Printf(format string, args ...any) {
	p.Print(fmt.Sprintf(format, args...))
}

func (p *Plugin) printerFixture(name string, scope fixture.Scope) *fixture.Descriptor {
	indent := "\t"
	if scope == fixture.ScopeSession {
		indent = ""
	}
	return describe(fixture.Define(name, scope, func(h fixture.Handle) (*Printer, error) {
		return NewPrinter(p.output, indent, h.Logger().With("fixture", name)), nil
	}, nil), "progress printer for the "+scope.String()+" scope")
}
