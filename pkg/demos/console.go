package demos

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Console narrates demo progress. It is safe for concurrent use.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	ok   *color.Color
	fail *color.Color
	head *color.Color
	dim  *color.Color
}

// NewConsole writes to w, with ANSI colors when colored is set.
func NewConsole(w io.Writer, colored bool) *Console {
	c := &Console{
		w:    w,
		ok:   color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		head: color.New(color.FgCyan, color.Bold),
		dim:  color.New(color.Faint),
	}
	for _, col := range []*color.Color{c.ok, c.fail, c.head, c.dim} {
		if colored {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Printf writes formatted text.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Println writes a line.
func (c *Console) Println(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, args...)
}

// Done ends a "doing something..." line with a success word such as "CREATED!".
func (c *Console) Done(word string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok.Fprintln(c.w, word)
}

// Failed ends a line with a failure word.
func (c *Console) Failed(word string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail.Fprintln(c.w, word)
}

// Header starts a demo or a section of one.
func (c *Console) Header(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	c.head.Fprintln(c.w, title)
}

// Separator visually splits the steps of a demo.
func (c *Console) Separator() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
	c.dim.Fprintln(c.w, strings.Repeat("-", 72))
	fmt.Fprintln(c.w)
}
