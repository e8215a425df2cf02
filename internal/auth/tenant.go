package auth

import (
	"context"
	"errors"

	mapping "program-mapping/internal/mapping/domain"
)

var (
	// ErrTenantMismatch indicates the program belongs to another tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrOutOfScope indicates the program is outside the token's program scope.
	ErrOutOfScope = errors.New("program outside token scope")
	// ErrNotFound indicates the program does not exist.
	ErrNotFound = errors.New("resource not found")
)

// ProgramLookup loads a parent program.
type ProgramLookup interface {
	GetProgram(ctx context.Context, id string) (*mapping.Program, error)
}

// ProgramAccessChecker decides whether the caller in ctx may work on a program.
type ProgramAccessChecker interface {
	EnsureProgramAccess(ctx context.Context, programID string) error
}

// ProgramChecker checks program scope and tenant ownership.
type ProgramChecker struct {
	programs ProgramLookup
}

// NewProgramChecker constructs a ProgramChecker.
func NewProgramChecker(programs ProgramLookup) *ProgramChecker {
	if programs == nil {
		return nil
	}
	return &ProgramChecker{programs: programs}
}

// EnsureProgramAccess passes when ctx carries no identity, which is the case
// with auth disabled. Otherwise the program must be in the token scope and
// owned by the caller's tenant.
func (c *ProgramChecker) EnsureProgramAccess(ctx context.Context, programID string) error {
	if c == nil || programID == "" {
		return nil
	}
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	if !identity.CanAccessProgram(programID) {
		return ErrOutOfScope
	}
	program, err := c.programs.GetProgram(ctx, programID)
	if err != nil {
		return err
	}
	if program == nil {
		return ErrNotFound
	}
	if program.TenantID != identity.TenantID {
		return ErrTenantMismatch
	}
	return nil
}
