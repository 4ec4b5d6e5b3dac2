package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/inspect"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxValueWidth = 60

type browserState int

const (
	stateBrowse browserState = iota
	stateGoto
)

// frame is one level of the navigation path. children holds the node's
// children with references already expanded, so View never queries the target.
type frame struct {
	label    string
	value    inspect.Value
	children []inspect.Value
	selected int
}

type browserModel struct {
	ctx   context.Context
	err   error
	in    *inspect.Inspector
	src   *source
	input textinput.Model
	stack []frame
	state browserState
}

type inspectedMsg struct {
	err   error
	label string
	value inspect.Value
}

func newBrowserModel(ctx context.Context, src *source, depth int) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "0x..."
	ti.Prompt = "address: "
	ti.Width = 24

	return &browserModel{
		ctx:   ctx,
		in:    inspect.NewWithConfig(src.target, &inspect.Config{MaxDepth: depth}),
		src:   src,
		input: ti,
		state: stateBrowse,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return m.inspectCmd(m.src.root)
}

func (m *browserModel) inspectCmd(addr heapscope.Address) tea.Cmd {
	return func() tea.Msg {
		v, err := m.in.Inspect(m.ctx, addr)
		return inspectedMsg{value: v, label: addr.String(), err: err}
	}
}

func (m *browserModel) top() *frame {
	if len(m.stack) == 0 {
		return nil
	}
	return &m.stack[len(m.stack)-1]
}

func (m *browserModel) topNode() inspect.Node {
	f := m.top()
	if f == nil || f.value.Kind != inspect.ValueNode {
		return nil
	}
	return f.value.Node
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state == stateGoto {
			return m.updateGoto(msg)
		}
		return m.updateBrowse(msg)

	case inspectedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.stack = []frame{m.newFrame(msg.label, msg.value)}
	}
	return m, nil
}

func (m *browserModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "up", "k":
		if f := m.top(); f != nil && f.selected > 0 {
			f.selected--
		}

	case "down", "j":
		if n := m.topNode(); n != nil && m.top().selected < n.ChildCount()-1 {
			m.top().selected++
		}

	case "enter", "right", "l":
		m.descend()

	case "backspace", "left", "h":
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
		}

	case "r":
		m.refresh()

	case "g":
		m.state = stateGoto
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *browserModel) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil

	case "enter":
		m.state = stateBrowse
		m.input.Blur()
		addr, err := parseAddr(m.input.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.inspectCmd(addr)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browserModel) descend() {
	n := m.topNode()
	if n == nil || !n.HasChildren() {
		return
	}
	f := m.top()
	v, err := n.ChildAt(m.ctx, f.selected)
	if err != nil {
		m.err = err
		return
	}
	if v.Kind != inspect.ValueNode {
		return
	}
	m.stack = append(m.stack, m.newFrame(childLabel(n, f.selected), v))
}

// newFrame expands every child of v. A child that fails to expand keeps its
// unexpanded value.
func (m *browserModel) newFrame(label string, v inspect.Value) frame {
	f := frame{label: label, value: v}
	if v.Kind != inspect.ValueNode {
		return f
	}
	n := v.Node
	f.children = make([]inspect.Value, n.ChildCount())
	for i, c := range n.Children() {
		cv, err := n.ChildAt(m.ctx, i)
		if err != nil {
			cv = c.Value
		}
		f.children[i] = cv
	}
	return f
}

func (m *browserModel) refresh() {
	n := m.topNode()
	if n == nil {
		return
	}
	fresh, err := n.Refresh(m.ctx)
	if err != nil {
		m.err = err
		return
	}
	f := m.top()
	selected := min(f.selected, max(fresh.ChildCount()-1, 0))
	*f = m.newFrame(f.label, inspect.NodeValue(fresh))
	f.selected = selected
}

func childLabel(n inspect.Node, i int) string {
	if n.Category() == inspect.CategoryArray {
		return fmt.Sprintf("[%d]", i)
	}
	return n.Children()[i].Field.Name
}

func (m *browserModel) path() string {
	labels := make([]string, len(m.stack))
	for i, f := range m.stack {
		labels[i] = f.label
	}
	return strings.Join(labels, " > ")
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("heapscope"))
	b.WriteString(" ")
	b.WriteString(m.src.name)
	b.WriteString("\n\n")

	f := m.top()
	if f == nil {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("g goto • q quit"))
		} else {
			b.WriteString("Inspecting " + m.src.root.String() + "...")
		}
		if m.state == stateGoto {
			b.WriteString("\n\n" + m.input.View())
		}
		return b.String()
	}

	b.WriteString(helpStyle.Render(m.path()))
	b.WriteString("\n")
	b.WriteString(inspect.Headline(f.value))
	b.WriteString("\n\n")

	if n := m.topNode(); n != nil {
		ptrSize := m.src.target.PointerSize()
		for i, c := range n.Children() {
			v := c.Value
			if i < len(f.children) {
				v = f.children[i]
			}
			line := fmt.Sprintf("%s %s = %s",
				nameStyle.Render(childLabel(n, i)),
				typeStyle.Render(typeLabel(c.Field.Tag, ptrSize)),
				truncate(inspect.Headline(v), maxValueWidth))
			if i == f.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.state == stateGoto {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter inspect • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • ⌫ back • r refresh • g goto • q quit"))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// typeLabel names a field's tag together with its WIT equivalent.
func typeLabel(tag heapscope.TypeTag, ptrSize uint32) string {
	t := inspect.WITType(tag, ptrSize)
	if t == nil {
		return tag.String()
	}
	return tag.String() + " (" + witTypeStr(t) + ")"
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		if _, ok := v.Kind.(*wit.Record); ok {
			return "record"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func runInteractive(opts options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}

	ctx := context.Background()
	src, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	p := tea.NewProgram(newBrowserModel(ctx, src, opts.depth), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
