package passes

import (
	"fmt"

	"bitgen/internal/ir"
)

// Pass is a single analysis over a bitfield.
type Pass interface {
	Name() string
	Run(bf *ir.Bitfield) error
}

// Manager runs passes in registration order and stops at the first failure.
type Manager struct {
	passes []Pass
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add appends p to the pipeline.
func (m *Manager) Add(p Pass) {
	m.passes = append(m.passes, p)
}

// Run executes every pass over bf.
func (m *Manager) Run(bf *ir.Bitfield) error {
	if bf == nil {
		return fmt.Errorf("passes: bitfield is nil")
	}
	for _, p := range m.passes {
		if err := p.Run(bf); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}
