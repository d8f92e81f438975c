// Package display abstracts the status screen and the LED level matrix.
// The panel lock is shared between the status renderer and network
// bring-up so their frames never interleave.
package display

import (
	"fmt"
	"sync"

	"github.com/thatsimonsguy/tank-controller/internal/model"
)

// Status is everything the status screen shows.
type Status struct {
	Level  int
	Limits model.Limits
	PumpOn bool
	LinkUp bool
}

// Lines renders a status as the five screen rows.
func (s Status) Lines() []string {
	pump := "Bomba:OFF"
	if s.PumpOn {
		pump = "Bomba:ON"
	}
	link := "Wi-Fi:OFF"
	if s.LinkUp {
		link = "Wi-Fi:ON"
	}
	return []string{
		fmt.Sprintf("Min: %d%%", s.Limits.MinPercent),
		fmt.Sprintf("Max: %d%%", s.Limits.MaxPercent),
		fmt.Sprintf("Nivel: %d%%", s.Level),
		pump,
		link,
	}
}

// Screen is a text display. Draw replaces the whole frame.
type Screen interface {
	Draw(lines []string) error
}

// Matrix shows one of the level frames (0 empty .. 4 full).
type Matrix interface {
	ShowFrame(frame int) error
}

// Panel serializes access to a Screen.
type Panel struct {
	mu     sync.Mutex
	screen Screen
}

func NewPanel(s Screen) *Panel {
	return &Panel{screen: s}
}

func (p *Panel) Draw(lines ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screen.Draw(lines)
}

func (p *Panel) ShowStatus(s Status) error {
	return p.Draw(s.Lines()...)
}

// Hold runs fn with the panel locked; fn draws directly on the screen.
func (p *Panel) Hold(fn func(s Screen)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.screen)
}
