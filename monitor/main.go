package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"github.com/tensoraccel/tpa/binfile"
	"github.com/tensoraccel/tpa/bitpack"
	"github.com/tensoraccel/tpa/device"
	"github.com/tensoraccel/tpa/dis/disassembler"
	"github.com/tensoraccel/tpa/driver"
	"github.com/tensoraccel/tpa/isa"
	"github.com/tensoraccel/tpa/tile"
	"github.com/tensoraccel/tpa/vmem"
)

// Tile panes in [ / ] rotation order.
var tileNames = []string{"INP", "WGT", "ACC", "UOP"}

// Define some basic styles
var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	changed   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}

	titleStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1).
			Width(36)

	changedStyle = lipgloss.NewStyle().
			Foreground(changed).
			Bold(true)

	disasmStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1)

	currentLineStyle = lipgloss.NewStyle().
				Background(highlight).
				Foreground(lipgloss.Color("#ffffff"))

	selectedLineStyle = lipgloss.NewStyle().
				Foreground(highlight)

	memoryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(special).
			Padding(1).
			Width(50)

	tileStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(special).
			Padding(1)
)

// Monitor represents the UI state
type Monitor struct {
	dram *vmem.Memory
	dev  *device.Device
	prof *device.Profiler

	insns   []isa.Insn
	entries []disassembler.Entry
	pc      int // next instruction to execute

	width    int
	height   int
	selected int

	activePane string // "disasm", "memory", "tile"

	tileSel    int
	tileOffset uint32

	memoryAddress uint32
	lastMemory    [64]uint8
	lastProf      device.Profiler

	gotoInput   textinput.Model
	showingGoto bool
	showDump    bool
}

// NewMonitor builds the UI around a device and a loaded stream.
func NewMonitor(dev *device.Device, dram *vmem.Memory, insns []isa.Insn, firstAddr uint32) *Monitor {
	ti := textinput.New()
	ti.Placeholder = "Enter hex address (e.g. 1000)"
	ti.CharLimit = 8
	ti.Width = 10

	stream := make([]byte, 0, len(insns)*isa.INSN_BYTES)
	for _, insn := range insns {
		stream = append(stream, insn.Bytes()...)
	}

	m := &Monitor{
		dram:          dram,
		dev:           dev,
		prof:          dev.Profiler(),
		insns:         insns,
		entries:       disassembler.Disassemble(stream),
		memoryAddress: firstAddr,
		activePane:    "disasm",
		gotoInput:     ti,
	}
	m.captureMemoryState()
	return m
}

// captureMemoryState snapshots the visible DRAM window for change
// detection.
func (m *Monitor) captureMemoryState() {
	for i := range m.lastMemory {
		m.lastMemory[i] = 0
		if data, ok := m.dram.Probe(m.memoryAddress + uint32(i)); ok {
			m.lastMemory[i] = data[0]
		}
	}
}

// step executes the next instruction of the stream.
func (m *Monitor) step() {
	if m.pc >= len(m.insns) {
		return
	}
	m.lastProf = *m.prof
	m.captureMemoryState()
	m.dev.RunOne(m.insns[m.pc])
	m.pc++
	m.selected = m.pc
	if m.selected > len(m.entries)-1 {
		m.selected = len(m.entries) - 1
	}
}

// Format memory panel content with change highlighting
func (m Monitor) formatMemory() string {
	var result strings.Builder
	addr := m.memoryAddress

	for row := 0; row < 8; row++ {
		result.WriteString(fmt.Sprintf("0x%08X: ", addr))

		var ascii strings.Builder
		for col := 0; col < 8; col++ {
			offset := row*8 + col
			value := uint8(0)
			mapped := false
			if data, ok := m.dram.Probe(addr + uint32(col)); ok {
				value = data[0]
				mapped = true
			}

			hex := fmt.Sprintf("%02X ", value)
			ch := "."
			if !mapped {
				hex = "-- "
			} else if value >= 32 && value <= 126 {
				ch = string(value)
			}
			if mapped && value != m.lastMemory[offset] {
				hex = changedStyle.Render(hex)
				ch = changedStyle.Render(ch)
			}
			result.WriteString(hex)
			ascii.WriteString(ch)
		}

		result.WriteString(" | ")
		result.WriteString(ascii.String())
		result.WriteString("\n")
		addr += 8
	}

	return result.String()
}

// formatTile renders a window of the selected tile memory.
func (m Monitor) formatTile() string {
	var result strings.Builder

	var t *tile.Memory
	switch tileNames[m.tileSel] {
	case "INP":
		t = m.dev.Inp()
	case "WGT":
		t = m.dev.Wgt()
	case "ACC":
		t = m.dev.Acc()
	case "UOP":
		t = m.dev.Uop()
	}

	for row := uint32(0); row < 8; row++ {
		elem := m.tileOffset + row
		if int(elem) >= t.Depth() {
			break
		}
		switch tileNames[m.tileSel] {
		case "ACC":
			acc := bitpack.New(isa.ACC_WIDTH, t.BeginPtr(elem))
			result.WriteString(fmt.Sprintf("e%04d:", elem))
			for lane := uint32(0); lane < 8; lane++ {
				result.WriteString(fmt.Sprintf(" %8d", acc.GetSigned(lane)))
			}
		case "UOP":
			u := isa.DecodeUop(bitpack.New(isa.UOP_WIDTH, t.BeginPtr(elem)).GetUnsigned(0))
			result.WriteString(fmt.Sprintf("u%04d: dst=%-4d src=%-4d wgt=%-4d",
				elem, u.DstIdx, u.SrcIdx, u.WgtIdx))
		default:
			result.WriteString(fmt.Sprintf("e%04d: % X", elem, t.BeginPtr(elem)[:16]))
		}
		result.WriteString("\n")
	}
	return result.String()
}

// formatCounter renders one profiler line, highlighted when the last
// step changed it.
func formatCounter(name string, current, last uint64) string {
	line := fmt.Sprintf("%-16s %d", name, current)
	if current != last {
		return changedStyle.Render(line)
	}
	return line
}

func (m Monitor) formatProfiler() string {
	var result strings.Builder
	rows := []struct {
		name          string
		current, last uint64
	}{
		{"inp_load_bytes", m.prof.InpLoadBytes, m.lastProf.InpLoadBytes},
		{"wgt_load_bytes", m.prof.WgtLoadBytes, m.lastProf.WgtLoadBytes},
		{"acc_load_bytes", m.prof.AccLoadBytes, m.lastProf.AccLoadBytes},
		{"uop_load_bytes", m.prof.UopLoadBytes, m.lastProf.UopLoadBytes},
		{"out_store_bytes", m.prof.OutStoreBytes, m.lastProf.OutStoreBytes},
		{"gemm_ops", m.prof.GemmOps, m.lastProf.GemmOps},
		{"alu_ops", m.prof.AluOps, m.lastProf.AluOps},
	}
	for _, r := range rows {
		result.WriteString(formatCounter(r.name, r.current, r.last))
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("%-16s %d\n", "finish", m.dev.FinishCounter()))
	result.WriteString(fmt.Sprintf("%-16s %d/%d\n", "pc", m.pc, len(m.insns)))
	return result.String()
}

// formatDump spews the decoded form of the selected instruction.
func (m Monitor) formatDump() string {
	if m.selected >= len(m.insns) {
		return ""
	}
	insn := m.insns[m.selected]
	switch insn.Opcode() {
	case isa.OPCODE_LOAD, isa.OPCODE_STORE:
		return spew.Sdump(insn.AsMem())
	case isa.OPCODE_ALU:
		return spew.Sdump(insn.AsAlu())
	default:
		return spew.Sdump(insn.AsGem())
	}
}

// Disassembly window around the selected line
func (m Monitor) disassemble() string {
	var result strings.Builder

	start := m.selected - 10
	if start < 0 {
		start = 0
	}
	for i := 0; i < 20 && start+i < len(m.entries); i++ {
		e := m.entries[start+i]
		line := e.String()
		if e.Index == m.pc {
			line = currentLineStyle.Render(line)
		} else if e.Index == m.selected {
			line = selectedLineStyle.Render(line)
		}
		result.WriteString(line)
		result.WriteString("\n")
	}
	return result.String()
}

// Implementation of tea.Model interface
func (m Monitor) Init() tea.Cmd {
	return nil
}

// Handle keyboard input
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.showingGoto {
			switch msg.Type {
			case tea.KeyEnter:
				if addr, err := strconv.ParseUint(m.gotoInput.Value(), 16, 32); err == nil {
					m.memoryAddress = uint32(addr) &^ 7
					m.captureMemoryState()
				}
				m.showingGoto = false
				return m, nil
			case tea.KeyEsc:
				m.showingGoto = false
				return m, nil
			}
			var cmd tea.Cmd
			m.gotoInput, cmd = m.gotoInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "g":
			m.showingGoto = true
			m.gotoInput.Focus()
			return m, textinput.Blink

		case "s", " ":
			m.step()

		case "r":
			// Run the rest of the stream.
			for m.pc < len(m.insns) {
				m.step()
			}

		case "d":
			m.showDump = !m.showDump

		case "[":
			m.tileSel = (m.tileSel + len(tileNames) - 1) % len(tileNames)
			m.tileOffset = 0
		case "]":
			m.tileSel = (m.tileSel + 1) % len(tileNames)
			m.tileOffset = 0

		case "tab":
			switch m.activePane {
			case "disasm":
				m.activePane = "memory"
			case "memory":
				m.activePane = "tile"
			default:
				m.activePane = "disasm"
			}

		case "up":
			switch m.activePane {
			case "disasm":
				if m.selected > 0 {
					m.selected--
				}
			case "memory":
				if m.memoryAddress >= 8 {
					m.memoryAddress -= 8
					m.captureMemoryState()
				}
			case "tile":
				if m.tileOffset >= 8 {
					m.tileOffset -= 8
				} else {
					m.tileOffset = 0
				}
			}
		case "down":
			switch m.activePane {
			case "disasm":
				if m.selected < len(m.entries)-1 {
					m.selected++
				}
			case "memory":
				m.memoryAddress += 8
				m.captureMemoryState()
			case "tile":
				m.tileOffset += 8
			}
		}
	}
	return m, nil
}

func (m Monitor) View() string {
	disasm := disasmStyle.Render(fmt.Sprintf(
		"Instructions\n\n%s",
		m.disassemble(),
	))

	tilePane := tileStyle.Render(fmt.Sprintf(
		"Tile %s ([/] to switch, ↑↓ to scroll)\n\n%s",
		tileNames[m.tileSel],
		m.formatTile(),
	))

	memory := memoryStyle.Render(fmt.Sprintf(
		"DRAM (g to goto, ↑↓ to scroll)\n\n%s",
		m.formatMemory(),
	))

	profiler := infoStyle.Render(fmt.Sprintf(
		"Profiler\n\n%s",
		m.formatProfiler(),
	))

	right := profiler
	if m.showDump {
		right = lipgloss.JoinVertical(lipgloss.Left,
			profiler,
			infoStyle.Render(m.formatDump()),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		disasm,
		lipgloss.JoinVertical(lipgloss.Left, tilePane, memory),
		right,
	)

	help := titleStyle.Render("s/space: step  r: run  tab: pane  [/]: tile  g: goto  d: dump  q: quit")
	if m.showingGoto {
		help = titleStyle.Render("Goto address: " + m.gotoInput.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, help)
}

// loadBuffers reads the compiler output files and places them in DRAM in
// the allocation order the instruction stream assumes.
func loadBuffers(dir string) ([]isa.Insn, uint32, error) {
	inp, err := binfile.ReadInt8(filepath.Join(dir, "input.bin"))
	if err != nil {
		return nil, 0, err
	}
	wgt, err := binfile.ReadInt8(filepath.Join(dir, "weight.bin"))
	if err != nil {
		return nil, 0, err
	}
	acc, err := binfile.ReadInt32(filepath.Join(dir, "accumulator.bin"))
	if err != nil {
		return nil, 0, err
	}
	uops, err := binfile.ReadUops(filepath.Join(dir, "uop.bin"))
	if err != nil {
		return nil, 0, err
	}
	insns, err := binfile.ReadInsns(filepath.Join(dir, "instructions.bin"))
	if err != nil {
		return nil, 0, err
	}

	memInp := driver.MemAlloc(len(inp), true)
	memWgt := driver.MemAlloc(len(wgt), true)
	driver.MemAlloc(16*256, true) // output buffer
	memUop := driver.MemAlloc(len(uops)*isa.UOP_ELEM_BYTES, true)
	memAcc := driver.MemAlloc(len(acc)*4, true)

	driver.MemCopyFromHost(memInp, binfile.Int8Bytes(inp))
	driver.MemCopyFromHost(memWgt, binfile.Int8Bytes(wgt))
	driver.MemCopyFromHost(memAcc, binfile.Int32Bytes(acc))
	uopBytes := make([]byte, 0, len(uops)*isa.UOP_ELEM_BYTES)
	for _, u := range uops {
		enc := u.Encode()
		uopBytes = append(uopBytes, byte(enc), byte(enc>>8), byte(enc>>16), byte(enc>>24))
	}
	driver.MemCopyFromHost(memUop, uopBytes)

	return insns, driver.MemGetPhyAddr(memInp), nil
}

func main() {
	dir := flag.String("d", ".", "Directory holding the buffer files")
	flag.Parse()

	insns, firstAddr, err := loadBuffers(*dir)
	if err != nil {
		fmt.Printf("Error loading buffers: %v\n", err)
		os.Exit(1)
	}

	dev := driver.DeviceAlloc()
	monitor := NewMonitor(dev, vmem.Global(), insns, firstAddr)

	p := tea.NewProgram(monitor, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running monitor: %v\n", err)
		os.Exit(1)
	}
}
