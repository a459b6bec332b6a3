package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/squash"
	"github.com/wippyai/squash/alloc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	payloadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	dumpWidth = 16
	dumpLines = 8
	keptShown = 8
)

// sample is the value squashed from the current input.
type sample struct {
	err  error
	text squash.Str
	raw  squash.Bytes
}

func (s *sample) view() []byte {
	if s.text.IsEmpty() {
		return s.raw.View()
	}
	return s.text.AsBytes()
}

func (s *sample) free() {
	s.text.Free()
	s.raw.Free()
	s.err = nil
}

type inspectModel struct {
	counting *alloc.Counting
	kept     []squash.Bytes
	input    textinput.Model
	current  sample
	allocErr error
}

func newInspectModel(counting *alloc.Counting) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = `type a value, \xNN escapes allowed`
	ti.Prompt = "> "
	ti.Width = 60
	ti.CharLimit = 4096
	ti.Focus()
	return &inspectModel{
		counting: counting,
		input:    ti,
	}
}

func (m *inspectModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.release()
			return m, tea.Quit

		case "enter":
			m.keep()
			return m, nil

		case "ctrl+d":
			if n := len(m.kept); n > 0 {
				m.kept[n-1].Free()
				m.kept = m.kept[:n-1]
			}
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.squash(m.input.Value())
	}
	return m, cmd
}

// squash replaces the current sample with the decoded input.
func (m *inspectModel) squash(in string) {
	m.current.free()
	m.allocErr = nil

	data := decodeEscapes(in)
	s, err := squash.FromBytes(data)
	switch {
	case err == nil:
		m.current.text = s
	case errors.Is(err, squash.ErrInvalidUTF8):
		m.current.err = err
		m.current.raw, m.allocErr = squash.FromSlice(data)
	default:
		m.allocErr = err
	}
}

// decodeEscapes resolves Go escape sequences (\xNN, \u1234, \n, \") in in.
// Anything that does not form a valid escape is kept literally.
func decodeEscapes(in string) []byte {
	out := make([]byte, 0, len(in))
	for len(in) > 0 {
		if in[0] != '\\' {
			out = append(out, in[0])
			in = in[1:]
			continue
		}
		r, multibyte, tail, err := strconv.UnquoteChar(in, '"')
		if err != nil {
			out = append(out, in[0])
			in = in[1:]
			continue
		}
		if multibyte {
			out = utf8.AppendRune(out, r)
		} else {
			out = append(out, byte(r))
		}
		in = tail
	}
	return out
}

// keep moves the current sample into the kept list.
func (m *inspectModel) keep() {
	if m.allocErr != nil {
		return
	}
	b, err := squash.FromSlice(m.current.view())
	if err != nil {
		m.allocErr = err
		return
	}
	m.kept = append(m.kept, b)
	m.current.free()
	m.input.Reset()
}

func (m *inspectModel) release() {
	m.current.free()
	for i := range m.kept {
		m.kept[i].Free()
	}
	m.kept = nil
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("squash inspector"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.allocErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.allocErr)))
		b.WriteString("\n\n")
	} else {
		m.describe(&b)
	}

	st := m.counting.Stats()
	fmt.Fprintf(&b, "live blocks %d  live bytes %d  peak %d  allocs %d  frees %d\n\n",
		st.Live, st.LiveBytes, st.PeakBytes, st.Allocs, st.Frees)

	if len(m.kept) > 0 {
		fmt.Fprintf(&b, "kept (%d):\n", len(m.kept))
		from := max(0, len(m.kept)-keptShown)
		for _, v := range m.kept[from:] {
			fmt.Fprintf(&b, "  %-6d %#v\n", v.Len(), v)
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("enter keep • ctrl+d drop last • esc quit"))
	return b.String()
}

// describe writes the layout of the current sample, reading the header
// straight from the block in front of the payload.
func (m *inspectModel) describe(b *strings.Builder) {
	payload := m.current.view()
	mgr := alloc.Default()
	codec := mgr.Codec()

	kind := "text"
	if m.current.err != nil {
		kind = "binary"
	}
	fmt.Fprintf(b, "%s, %d bytes", kind, len(payload))
	if kind == "text" {
		fmt.Fprintf(b, ", %d runes", m.current.text.RuneCount())
	}
	b.WriteString("\n")
	if m.current.err != nil {
		b.WriteString(errorStyle.Render(m.current.err.Error()))
		b.WriteString("\n")
	}

	if len(payload) == 0 {
		b.WriteString("empty: shared value, nothing allocated\n\n")
		return
	}

	p := unsafe.Pointer(unsafe.SliceData(payload))
	w := mgr.HeaderWidth(p)
	hdr := unsafe.Slice((*byte)(unsafe.Add(p, -w)), w)
	fmt.Fprintf(b, "header %s, %d of %d bytes\n\n", codec.Form(uint64(len(payload))), w, w+len(payload))

	hexDump(b, hdr, payload)
	b.WriteString("\n")
}

// hexDump writes header and payload bytes in rows, header bytes first.
func hexDump(b *strings.Builder, hdr, payload []byte) {
	total := len(hdr) + len(payload)
	rows := min((total+dumpWidth-1)/dumpWidth, dumpLines)
	for row := 0; row < rows; row++ {
		fmt.Fprintf(b, "%04x ", row*dumpWidth)
		for col := 0; col < dumpWidth; col++ {
			i := row*dumpWidth + col
			switch {
			case i < len(hdr):
				b.WriteString(headerStyle.Render(fmt.Sprintf(" %02x", hdr[i])))
			case i < total:
				b.WriteString(payloadStyle.Render(fmt.Sprintf(" %02x", payload[i-len(hdr)])))
			}
		}
		b.WriteString("\n")
	}
	if total > rows*dumpWidth {
		fmt.Fprintf(b, "     ... %d more bytes\n", total-rows*dumpWidth)
	}
}

func runInteractive(counting *alloc.Counting) error {
	p := tea.NewProgram(newInspectModel(counting), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
