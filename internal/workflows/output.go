package workflows

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Printer writes workflow results for the operator. Logs carry progress;
// the printer carries the payloads a caller asked for.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a printer on w. A nil writer discards output.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{w: w}
}

// Print writes label followed by v as indented JSON.
func (p *Printer) Print(label string, v any) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(p.w, "%s: %v\n", label, v)
		return
	}
	fmt.Fprintf(p.w, "%s:\n%s\n", label, raw)
}

// Printf writes a formatted line.
func (p *Printer) Printf(format string, args ...any) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}
