package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bookpay/internal/domain/tenant"
	"bookpay/internal/store/repositories"
)

// TenantRepository is the pgx implementation of
// repositories.TenantRepository.
type TenantRepository struct {
	db querier
}

// NewTenantRepository creates a pool-backed repository.
func NewTenantRepository(db querier) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == 0 {
		return r.db.QueryRow(ctx, `
			INSERT INTO tenants (name, status)
			VALUES ($1, $2)
			RETURNING id`, t.Name, string(t.Status)).Scan(&t.ID)
	}
	_, err := r.db.Exec(ctx, `
		UPDATE tenants
		SET name = $1, status = $2, updated_at = now()
		WHERE id = $3`, t.Name, string(t.Status), t.ID)
	return err
}

func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		SELECT id, name, status
		FROM tenants
		WHERE id = $1`, id))
}

func (r *TenantRepository) FindByAPIKeyHash(ctx context.Context, keyHash string) (*tenant.Tenant, error) {
	return r.scanOne(r.db.QueryRow(ctx, `
		SELECT t.id, t.name, t.status
		FROM tenants t
		JOIN tenant_api_keys k ON k.tenant_id = t.id
		WHERE k.key_hash = $1 AND k.is_active`, keyHash))
}

func (r *TenantRepository) scanOne(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var status string
	if err := row.Scan(&t.ID, &t.Name, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	t.Status = tenant.Status(status)
	return &t, nil
}
