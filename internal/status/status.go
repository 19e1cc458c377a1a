// Package status implements a small fork/join text-tree consumer for
// runtime introspection, generalized from the teacher's
// goshawkdb.io/server/utils/status.StatusConsumer (used throughout the
// teacher as `Status(sc *status.StatusConsumer)` on every long-lived
// component). Every Paxos role exposes the same method here even though
// the distilled spec never asks for it: it is exactly the kind of
// operational ambient tooling the teacher always carries (see also each
// role's *_log method in original_source, the direct ancestor of this).
package status

import (
	"fmt"
	"strings"
)

// Consumer accumulates indented status lines. A Fork starts a nested,
// more-indented section; Join ends the most recently forked section.
type Consumer struct {
	lines  *[]string
	indent int
}

// NewConsumer creates a root Consumer.
func NewConsumer() *Consumer {
	lines := make([]string, 0, 16)
	return &Consumer{lines: &lines}
}

// Emit appends one line at the current indentation.
func (c *Consumer) Emit(line string) {
	*c.lines = append(*c.lines, strings.Repeat("  ", c.indent)+line)
}

// Emitf is a convenience wrapper around fmt.Sprintf + Emit.
func (c *Consumer) Emitf(format string, args ...interface{}) {
	c.Emit(fmt.Sprintf(format, args...))
}

// Fork returns a child Consumer writing into the same buffer, one level
// deeper. Call Join on the child when its section is complete.
func (c *Consumer) Fork() *Consumer {
	return &Consumer{lines: c.lines, indent: c.indent + 1}
}

// Join is the paired call to Fork; present for symmetry with the teacher's
// StatusConsumer and to mark the end of a forked section at call sites.
func (c *Consumer) Join() {}

// String renders the accumulated tree.
func (c *Consumer) String() string {
	return strings.Join(*c.lines, "\n")
}
