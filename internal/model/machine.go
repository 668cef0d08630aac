package model

import "fmt"

// MachineSpec describes the isolated machine a producer run executes in.
type MachineSpec struct {
	// Image is the container image with the vendor toolchain preinstalled.
	Image string
	// Cmd is the command executed inside the machine.
	Cmd []string
	// Env are extra environment variables for the command.
	Env map[string]string
	// Binds are host:container bind mounts, in Docker bind syntax.
	Binds []string
	// AutoRemove powers the machine down (removes it) after the run.
	AutoRemove bool
}

// Validate checks the machine spec is usable.
func (s MachineSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("machine image is required: %w", ErrNotValid)
	}
	if len(s.Cmd) == 0 {
		return fmt.Errorf("machine command is required: %w", ErrNotValid)
	}
	return nil
}
