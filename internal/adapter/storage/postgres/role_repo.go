package postgres

import (
	"context"
	"fmt"

	"accruing-ledger/internal/core/domain"
)

// RoleRepo implements ports.PermissionGate against the roles table. Grants
// come from the schema migrations and the startup admin bootstrap, never
// from request handling.
type RoleRepo struct {
	pool Pool
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(pool Pool) *RoleRepo {
	return &RoleRepo{pool: pool}
}

// HasRole reports whether the address holds the given role.
func (r *RoleRepo) HasRole(ctx context.Context, address string, role domain.Role) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM roles WHERE address = $1 AND role = $2)`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, address, string(role)).Scan(&ok); err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return ok, nil
}

// IsAdmin reports whether the address holds the ADMIN role.
func (r *RoleRepo) IsAdmin(ctx context.Context, address string) (bool, error) {
	return r.HasRole(ctx, address, domain.RoleAdmin)
}

// Grant gives a role to an address; granting twice is a no-op.
func (r *RoleRepo) Grant(ctx context.Context, address string, role domain.Role) error {
	query := `INSERT INTO roles (address, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, address, string(role)); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}
