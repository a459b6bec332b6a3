package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/squash"
	"github.com/wippyai/squash/alloc"
	"github.com/wippyai/squash/header"
)

const maxToken = 16 << 20

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	savingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// tally counts what was squashed.
type tally struct {
	tokens   int
	text     int
	binary   int
	empty    int
	short    int
	extended int
	payload  int64
	longest  int
}

// corpus owns every squashed token until free is called.
type corpus struct {
	strs  []squash.Str
	raw   []squash.Bytes
	tally tally
}

// scan splits r and squashes every token. Tokens that are not valid UTF-8
// are kept as Bytes.
func (c *corpus) scan(r io.Reader, split bufio.SplitFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxToken)
	sc.Split(split)
	for sc.Scan() {
		if err := c.add(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *corpus) add(tok []byte) error {
	s, err := squash.FromBytes(tok)
	switch {
	case err == nil:
		c.strs = append(c.strs, s)
		c.tally.text++
	case errors.Is(err, squash.ErrInvalidUTF8):
		b, err := squash.FromSlice(tok)
		if err != nil {
			return err
		}
		c.raw = append(c.raw, b)
		c.tally.binary++
	default:
		return err
	}

	t := &c.tally
	t.tokens++
	t.payload += int64(len(tok))
	t.longest = max(t.longest, len(tok))
	switch {
	case len(tok) == 0:
		t.empty++
	case alloc.Default().Codec().Form(uint64(len(tok))) == header.Short:
		t.short++
	default:
		t.extended++
	}
	return nil
}

func (c *corpus) free() {
	for i := range c.strs {
		c.strs[i].Free()
	}
	for i := range c.raw {
		c.raw[i].Free()
	}
	c.strs, c.raw = nil, nil
}

// report compares the squashed footprint with conventional slice and
// string headers.
type report struct {
	tally   tally
	stats   alloc.Stats
	handles int64
	slices  int64
	strings int64
}

func newReport(t tally, st alloc.Stats) report {
	n := int64(t.tokens)
	return report{
		tally:   t,
		stats:   st,
		handles: n * int64(unsafe.Sizeof(squash.Bytes{})),
		slices:  n * int64(unsafe.Sizeof([]byte(nil))),
		strings: n * int64(unsafe.Sizeof("")),
	}
}

// headers is the header overhead actually handed to the backend.
func (r report) headers() int64 {
	return int64(r.stats.TotalBytes) - r.tally.payload
}

func (r report) squashed() int64 {
	return r.handles + r.headers() + r.tally.payload
}

func (r report) render(w io.Writer, styled bool) {
	label := func(s string) string {
		s = fmt.Sprintf("%-16s", s)
		if styled {
			return labelStyle.Render(s)
		}
		return s
	}
	value := func(format string, args ...any) string {
		s := fmt.Sprintf(format, args...)
		if styled {
			return valueStyle.Render(s)
		}
		return s
	}
	compare := func(other int64) string {
		if other == 0 {
			return "-"
		}
		pct := 100 * float64(other-r.squashed()) / float64(other)
		s := fmt.Sprintf("%+.1f%%", pct)
		if !styled {
			return s
		}
		if pct >= 0 {
			return savingStyle.Render(s)
		}
		return lossStyle.Render(s)
	}

	t := r.tally
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s (%d text, %d binary, %d empty)\n", label("tokens"), value("%d", t.tokens), t.text, t.binary, t.empty)
	fmt.Fprintf(&b, "%s%s short, %s extended\n", label("header forms"), value("%d", t.short), value("%d", t.extended))
	fmt.Fprintf(&b, "%s%s B (longest %d)\n", label("payload"), value("%d", t.payload), t.longest)
	fmt.Fprintf(&b, "%s%s B in %d blocks\n", label("headers"), value("%d", r.headers()), r.stats.Allocs)
	fmt.Fprintf(&b, "%s%s B\n", label("handles"), value("%d", r.handles))
	fmt.Fprintf(&b, "%s%s B\n", label("squashed total"), value("%d", r.squashed()))
	fmt.Fprintf(&b, "%s%s B (%s)\n", label("as []byte"), value("%d", r.slices+t.payload), compare(r.slices+t.payload))
	fmt.Fprintf(&b, "%s%s B (%s)\n", label("as string"), value("%d", r.strings+t.payload), compare(r.strings+t.payload))
	fmt.Fprintf(&b, "%s%s B\n", label("peak live"), value("%d", r.stats.PeakBytes))
	io.WriteString(w, b.String())
}
