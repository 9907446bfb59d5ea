package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/persistence/sqlite"
)

// UnitRepository implements port.UnitRepository
type UnitRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *sql.DB, logger *zap.Logger) port.UnitRepository {
	return &UnitRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new unit record. A duplicate id surfaces as ErrConflict:
// onboarding never silently overwrites an existing unit.
func (r *UnitRepository) Create(ctx context.Context, unit *entity.Unit) error {
	query := `
		INSERT INTO units (
			unit_id, vat_number, organization_name, common_name,
			organization_unit, country, invoice_type, location, industry,
			csr, private_key_ref,
			compliance_token, compliance_secret, compliance_request_id,
			production_token, production_secret, production_request_id,
			active_token, active_secret, active_request_id,
			state, production_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		unit.UnitID,
		unit.VATNumber,
		unit.OrganizationName,
		unit.CommonName,
		unit.OrganizationUnit,
		unit.Country,
		unit.InvoiceType,
		unit.Location,
		unit.Industry,
		unit.CSR,
		unit.PrivateKeyRef,
		unit.Compliance.Token, unit.Compliance.Secret, unit.Compliance.RequestID,
		unit.Production.Token, unit.Production.Secret, unit.Production.RequestID,
		unit.Active.Token, unit.Active.Secret, unit.Active.RequestID,
		string(unit.State),
		unit.ProductionMode,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: unit %s", entity.ErrConflict, unit.UnitID)
		}
		r.logger.Error("Failed to create unit", zap.String("unit_id", unit.UnitID), zap.Error(err))
		return fmt.Errorf("failed to create unit: %w", err)
	}

	return nil
}

// GetByID retrieves a unit by its identifier
func (r *UnitRepository) GetByID(ctx context.Context, unitID string) (*entity.Unit, error) {
	query := `
		SELECT unit_id, vat_number, organization_name, common_name,
			organization_unit, country, invoice_type, location, industry,
			csr, private_key_ref,
			compliance_token, compliance_secret, compliance_request_id,
			production_token, production_secret, production_request_id,
			active_token, active_secret, active_request_id,
			state, production_mode, created_at, updated_at
		FROM units
		WHERE unit_id = ?
	`

	var unit entity.Unit
	var state string

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, unitID).Scan(
		&unit.UnitID,
		&unit.VATNumber,
		&unit.OrganizationName,
		&unit.CommonName,
		&unit.OrganizationUnit,
		&unit.Country,
		&unit.InvoiceType,
		&unit.Location,
		&unit.Industry,
		&unit.CSR,
		&unit.PrivateKeyRef,
		&unit.Compliance.Token, &unit.Compliance.Secret, &unit.Compliance.RequestID,
		&unit.Production.Token, &unit.Production.Secret, &unit.Production.RequestID,
		&unit.Active.Token, &unit.Active.Secret, &unit.Active.RequestID,
		&state,
		&unit.ProductionMode,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get unit", zap.String("unit_id", unitID), zap.Error(err))
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}

	unit.State = entity.UnitState(state)
	return &unit, nil
}

// Update persists the unit's credential slots, state and flags
func (r *UnitRepository) Update(ctx context.Context, unit *entity.Unit) error {
	query := `
		UPDATE units
		SET csr = ?, private_key_ref = ?,
			compliance_token = ?, compliance_secret = ?, compliance_request_id = ?,
			production_token = ?, production_secret = ?, production_request_id = ?,
			active_token = ?, active_secret = ?, active_request_id = ?,
			state = ?, production_mode = ?, updated_at = CURRENT_TIMESTAMP
		WHERE unit_id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		unit.CSR,
		unit.PrivateKeyRef,
		unit.Compliance.Token, unit.Compliance.Secret, unit.Compliance.RequestID,
		unit.Production.Token, unit.Production.Secret, unit.Production.RequestID,
		unit.Active.Token, unit.Active.Secret, unit.Active.RequestID,
		string(unit.State),
		unit.ProductionMode,
		unit.UnitID,
	)
	if err != nil {
		r.logger.Error("Failed to update unit", zap.String("unit_id", unit.UnitID), zap.Error(err))
		return fmt.Errorf("failed to update unit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: unit %s", entity.ErrNotFound, unit.UnitID)
	}

	return nil
}

// getExecutor returns appropriate executor based on context
func (r *UnitRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.UnitRepository = (*UnitRepository)(nil)
