// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finirig/internal/monitor"
)

const meterWidth = 40

type devicesMsg struct {
	names []string
	input bool
}

type deviceSelectedMsg struct {
	name string
	err  error
}

type errMsg struct {
	err error
}

// fetchDevices lists the devices for one direction.
func fetchDevices(rig Rig, input bool) tea.Cmd {
	return func() tea.Msg {
		list := rig.OutputDeviceNames
		if input {
			list = rig.InputDeviceNames
		}
		names, err := list()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{names: names, input: input}
	}
}

// selectDevice switches the device off the UI goroutine; reopening the
// stream can take a while.
func selectDevice(rig Rig, name string, input bool) tea.Cmd {
	return func() tea.Msg {
		set := rig.SetOutputDevice
		if input {
			set = rig.SetInputDevice
		}
		return deviceSelectedMsg{name: name, err: set(name)}
	}
}

func (m *Model) handleDeviceKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
			m.viewport.SetContent(m.renderDevices())
		}
	case key.Matches(msg, keys.Down):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
			m.viewport.SetContent(m.renderDevices())
		}
	case key.Matches(msg, keys.Inputs):
		return fetchDevices(m.rig, true)
	case key.Matches(msg, keys.Outputs):
		return fetchDevices(m.rig, false)
	case key.Matches(msg, keys.Select):
		if m.selectedIndex >= 0 && m.selectedIndex < len(m.devices) {
			return selectDevice(m.rig, m.devices[m.selectedIndex], m.inputList)
		}
	}
	return nil
}

func (m Model) currentDevice() string {
	if m.inputList {
		return m.rig.CurrentInputDeviceName()
	}
	return m.rig.CurrentOutputDeviceName()
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return 0
}

// renderDevices formats the device list
func (m Model) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	current := m.currentDevice()
	var sb strings.Builder
	for i, name := range m.devices {
		marker := " "
		if name == current {
			marker = "●"
		}
		cursor := " "
		if i == m.selectedIndex {
			cursor = "▶"
		}
		line := fmt.Sprintf("%s %s %s", cursor, marker, name)
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

type infoField struct {
	label, value string
}

// parseDeviceInfo splits the engine's "Label: value" device description
// into fields. Only the first ": " on a line separates label from value,
// so device names containing colons survive.
func parseDeviceInfo(info string) []infoField {
	var fields []infoField
	for line := range strings.SplitSeq(info, "\n") {
		label, value, ok := strings.Cut(line, ": ")
		if !ok {
			fields = append(fields, infoField{label: strings.TrimSpace(line)})
			continue
		}
		fields = append(fields, infoField{label: label, value: strings.TrimSpace(value)})
	}
	return fields
}

// renderMeter draws a dBFS bar from the floor to 0 dB with a held-peak tick.
func renderMeter(name string, level, hold float32) string {
	db := monitor.ToDB(level)
	fill := meterCells(db)
	holdAt := meterCells(monitor.ToDB(hold)) - 1

	var bar strings.Builder
	for i := range meterWidth {
		switch {
		case i < fill:
			bar.WriteString(meterColor(i).Render("█"))
		case i == holdAt:
			bar.WriteString(meterColor(i).Render("|"))
		default:
			bar.WriteString("·")
		}
	}

	return fmt.Sprintf("%s%s %6.1f dB", labelStyle.Render(name), bar.String(), db)
}

func meterCells(db float64) int {
	return int((db - monitor.MinDB) / -monitor.MinDB * meterWidth)
}

func meterColor(cell int) lipgloss.Style {
	db := monitor.MinDB + float64(cell)/meterWidth*-monitor.MinDB
	switch {
	case db >= -6:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E0455A"))
	case db >= -18:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	}
}

func renderKnob(name string, v float32) string {
	const width = 20
	n := int(v*width + 0.5)
	return fmt.Sprintf("%s[%s%s] %.2f\n", labelStyle.Render(name),
		strings.Repeat("=", n), strings.Repeat(" ", width-n), v)
}

// Run launches the Bubble Tea TUI and blocks until the user quits.
func Run(rig Rig, pedal Pedal, meter Meter) error {
	p := tea.NewProgram(
		NewModel(rig, pedal, meter),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
