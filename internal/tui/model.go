// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finirig/internal/audio"
	"finirig/internal/monitor"
	"finirig/internal/transport"
)

// refreshInterval redraws the meters at roughly 30 FPS.
const refreshInterval = 33 * time.Millisecond

// paramStep is the increment applied by one parameter key press.
const paramStep = 0.05

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().Width(18)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0455A"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	RigScreen ScreenType = iota
	DeviceScreen
)

// Rig is the engine surface the interface drives.
type Rig interface {
	InputDeviceNames() ([]string, error)
	OutputDeviceNames() ([]string, error)
	SetInputDevice(name string) error
	SetOutputDevice(name string) error
	CurrentInputDeviceName() string
	CurrentOutputDeviceName() string
	DeviceInfo() audio.DeviceInfo
}

// Pedal is the overdrive control surface.
type Pedal interface {
	Drive() float32
	SetDrive(float32)
	Tone() float32
	SetTone(float32)
	Level() float32
	SetLevel(float32)
	Enabled() bool
	SetEnabled(bool)
}

// Meter provides the latest telemetry frame.
type Meter interface {
	Latest() transport.LevelFrame
}

type keyMap struct {
	Quit      key.Binding
	Switch    key.Binding
	Bypass    key.Binding
	DriveDown key.Binding
	DriveUp   key.Binding
	ToneDown  key.Binding
	ToneUp    key.Binding
	LevelDown key.Binding
	LevelUp   key.Binding
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Inputs    key.Binding
	Outputs   key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Switch:    key.NewBinding(key.WithKeys("tab")),
	Bypass:    key.NewBinding(key.WithKeys(" ", "space")),
	DriveDown: key.NewBinding(key.WithKeys("d")),
	DriveUp:   key.NewBinding(key.WithKeys("D")),
	ToneDown:  key.NewBinding(key.WithKeys("t")),
	ToneUp:    key.NewBinding(key.WithKeys("T")),
	LevelDown: key.NewBinding(key.WithKeys("l")),
	LevelUp:   key.NewBinding(key.WithKeys("L")),
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	Select:    key.NewBinding(key.WithKeys("enter")),
	Inputs:    key.NewBinding(key.WithKeys("i")),
	Outputs:   key.NewBinding(key.WithKeys("o")),
}

type tickMsg time.Time

// Model is the Bubble Tea model for the rig: live meters with the pedal
// controls on one screen and the device picker on the other.
type Model struct {
	rig   Rig
	pedal Pedal
	meter Meter

	frame        transport.LevelFrame
	activeScreen ScreenType
	status       string
	err          error

	devices       []string
	inputList     bool
	selectedIndex int
	viewport      viewport.Model
	ready         bool
}

// NewModel creates the rig model.
func NewModel(rig Rig, pedal Pedal, meter Meter) Model {
	return Model{
		rig:          rig,
		pedal:        pedal,
		meter:        meter,
		activeScreen: RigScreen,
		inputList:    true,
		frame:        transport.LevelFrame{InputDB: monitor.MinDB, OutputDB: monitor.MinDB},
	}
}

// Init initializes the Bubble Tea model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.viewport.SetContent(m.renderDevices())

	case tickMsg:
		m.frame = m.meter.Latest()
		cmds = append(cmds, tick())

	case devicesMsg:
		m.devices = msg.names
		m.inputList = msg.input
		m.selectedIndex = indexOf(msg.names, m.currentDevice())
		m.viewport.SetContent(m.renderDevices())

	case deviceSelectedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = "Selected " + msg.name
		}
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, keys.Switch) {
			if m.activeScreen == RigScreen {
				m.activeScreen = DeviceScreen
				cmds = append(cmds, fetchDevices(m.rig, m.inputList))
			} else {
				m.activeScreen = RigScreen
			}
			break
		}

		if m.activeScreen == RigScreen {
			m.handlePedalKey(msg)
		} else {
			cmds = append(cmds, m.handleDeviceKey(msg))
		}
	}

	if m.activeScreen == DeviceScreen {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handlePedalKey(msg tea.KeyMsg) {
	p := m.pedal
	switch {
	case key.Matches(msg, keys.Bypass):
		p.SetEnabled(!p.Enabled())
	case key.Matches(msg, keys.DriveDown):
		p.SetDrive(p.Drive() - paramStep)
	case key.Matches(msg, keys.DriveUp):
		p.SetDrive(p.Drive() + paramStep)
	case key.Matches(msg, keys.ToneDown):
		p.SetTone(p.Tone() - paramStep)
	case key.Matches(msg, keys.ToneUp):
		p.SetTone(p.Tone() + paramStep)
	case key.Matches(msg, keys.LevelDown):
		p.SetLevel(p.Level() - paramStep)
	case key.Matches(msg, keys.LevelUp):
		p.SetLevel(p.Level() + paramStep)
	}
}

// View renders the UI
func (m Model) View() string {
	var title, body, help string

	switch m.activeScreen {
	case DeviceScreen:
		direction := "Output"
		if m.inputList {
			direction = "Input"
		}
		title = titleStyle.Render(direction + " Devices")
		if m.ready {
			body = m.viewport.View()
		} else {
			body = m.renderDevices()
		}
		help = infoStyle.Render("↑/↓: Navigate • Enter: Select • i/o: Inputs/Outputs • Tab: Rig • q: Quit")
	default:
		title = titleStyle.Render("Overdrive Rig")
		body = m.renderRig()
		help = infoStyle.Render("Space: Bypass • d/D: Drive • t/T: Tone • l/L: Level • Tab: Devices • q: Quit")
	}

	footer := m.status
	if m.err != nil {
		footer = errorStyle.Render("Error: " + m.err.Error())
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", title, body, footer, help)
}

func (m Model) renderRig() string {
	var sb strings.Builder

	sb.WriteString(renderMeter("Input", m.frame.Input, m.frame.InputHold))
	sb.WriteString("\n")
	sb.WriteString(renderMeter("Output", m.frame.Output, m.frame.OutputHold))
	sb.WriteString("\n\n")

	state := highlightStyle.Render("ON")
	if !m.pedal.Enabled() {
		state = infoStyle.Render("BYPASSED")
	}
	sb.WriteString(labelStyle.Render("Overdrive") + state + "\n")
	sb.WriteString(renderKnob("Drive", m.pedal.Drive()))
	sb.WriteString(renderKnob("Tone", m.pedal.Tone()))
	sb.WriteString(renderKnob("Level", m.pedal.Level()))
	sb.WriteString("\n")

	for _, f := range parseDeviceInfo(m.rig.DeviceInfo().String()) {
		sb.WriteString(labelStyle.Render(f.label) + f.value + "\n")
	}
	return sb.String()
}
