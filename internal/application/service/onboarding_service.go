package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/lifecycle"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/pkg/utils"
)

// RegisterUnitRequest carries the organizational identity a CSR is built from
type RegisterUnitRequest struct {
	UnitID           string
	VATNumber        string
	OrganizationName string
	CommonName       string
	OrganizationUnit string
	Country          string
	InvoiceType      string
	Location         string
	Industry         string
	Production       bool
}

// OnboardingService drives credential units through the issuance lifecycle
type OnboardingService interface {
	RegisterUnit(ctx context.Context, req RegisterUnitRequest) (*entity.Unit, error)
	IssueCompliance(ctx context.Context, unitID, otp string) (*entity.Unit, error)
	CheckCompliance(ctx context.Context, unitID, invoiceUUID string) (*entity.Submission, error)
	IssueProduction(ctx context.Context, unitID string) (*entity.Unit, error)
	Revoke(ctx context.Context, unitID string) (*entity.Unit, error)
	GetUnit(ctx context.Context, unitID string) (*entity.Unit, error)
}

type onboardingServiceImpl struct {
	unitRepo       port.UnitRepository
	invoiceRepo    port.InvoiceRepository
	submissionRepo port.SubmissionRepository
	signer         port.Signer
	gateway        port.AuthorityGateway
	now            func() time.Time
	logger         Logger

	// locks serializes lifecycle transitions per unit id so concurrent
	// onboarding calls for the same unit cannot interleave credential writes
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOnboardingService creates a new OnboardingService
func NewOnboardingService(
	unitRepo port.UnitRepository,
	invoiceRepo port.InvoiceRepository,
	submissionRepo port.SubmissionRepository,
	signer port.Signer,
	gateway port.AuthorityGateway,
	now func() time.Time,
	logger Logger,
) OnboardingService {
	if now == nil {
		now = time.Now
	}
	return &onboardingServiceImpl{
		unitRepo:       unitRepo,
		invoiceRepo:    invoiceRepo,
		submissionRepo: submissionRepo,
		signer:         signer,
		gateway:        gateway,
		now:            now,
		logger:         logger,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (s *onboardingServiceImpl) unitLock(unitID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[unitID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[unitID] = lock
	}
	return lock
}

// RegisterUnit creates a unit and generates its key and CSR. An existing
// unit id is a conflict, never a silent overwrite.
func (s *onboardingServiceImpl) RegisterUnit(ctx context.Context, req RegisterUnitRequest) (*entity.Unit, error) {
	if err := utils.ValidateVATNumber(req.VATNumber); err != nil {
		return nil, fmt.Errorf("register unit: %w: %v", entity.ErrValidation, err)
	}

	lock := s.unitLock(req.UnitID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.unitRepo.GetByID(ctx, req.UnitID)
	if err != nil {
		return nil, fmt.Errorf("register unit %s: %w", req.UnitID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("register unit: %w: unit %s", entity.ErrConflict, req.UnitID)
	}

	unit := &entity.Unit{
		UnitID:           req.UnitID,
		VATNumber:        req.VATNumber,
		OrganizationName: req.OrganizationName,
		CommonName:       req.CommonName,
		OrganizationUnit: req.OrganizationUnit,
		Country:          req.Country,
		InvoiceType:      req.InvoiceType,
		Location:         req.Location,
		Industry:         req.Industry,
		State:            entity.UnitState(lifecycle.StateDraft),
		ProductionMode:   req.Production,
	}

	machine := lifecycle.NewOnboardingMachine(unit)
	if err := machine.Fire(ctx, lifecycle.TriggerGenerateCSR); err != nil {
		return nil, fmt.Errorf("register unit %s: %w", req.UnitID, err)
	}

	csr, err := s.signer.GenerateKeyAndCSR(ctx, port.CSRConfig{
		CommonName:       req.CommonName,
		OrganizationName: req.OrganizationName,
		OrganizationUnit: req.OrganizationUnit,
		Country:          req.Country,
		VATNumber:        req.VATNumber,
		InvoiceType:      req.InvoiceType,
		Location:         req.Location,
		Industry:         req.Industry,
		Production:       req.Production,
	})
	if err != nil {
		return nil, fmt.Errorf("register unit %s: %w", req.UnitID, err)
	}

	unit.CSR = csr.CSR
	unit.PrivateKeyRef = csr.PrivateKeyRef
	unit.State = entity.UnitState(machine.State())

	if err := s.unitRepo.Create(ctx, unit); err != nil {
		return nil, fmt.Errorf("register unit %s: %w", req.UnitID, err)
	}

	s.logger.Info("Unit registered", "unit_id", unit.UnitID, "state", string(unit.State))
	return unit, nil
}

// IssueCompliance exchanges the stored CSR and a one-time code for
// compliance credentials. The new credentials are mirrored into the active
// slot so compliance-phase submissions can proceed before production
// issuance. A gateway failure leaves the unit untouched.
func (s *onboardingServiceImpl) IssueCompliance(ctx context.Context, unitID, otp string) (*entity.Unit, error) {
	if err := utils.ValidateOTP(otp); err != nil {
		return nil, fmt.Errorf("issue compliance certificate: %w: %v", entity.ErrValidation, err)
	}

	lock := s.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	unit, err := s.loadUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("issue compliance certificate: %w", err)
	}

	machine := lifecycle.NewOnboardingMachine(unit)
	if err := machine.Fire(ctx, lifecycle.TriggerIssueCompliance); err != nil {
		return nil, fmt.Errorf("issue compliance certificate for unit %s: %w", unitID, err)
	}

	creds, err := s.gateway.IssueComplianceCredentials(ctx, unit.CSR, otp)
	if err != nil {
		return nil, fmt.Errorf("issue compliance certificate for unit %s: %w", unitID, err)
	}

	unit.Compliance = entity.CredentialSet{Token: creds.Token, Secret: creds.Secret, RequestID: creds.RequestID}
	unit.Active = unit.Compliance
	unit.State = entity.UnitState(machine.State())

	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("issue compliance certificate for unit %s: %w", unitID, err)
	}

	s.logger.Info("Compliance certificate issued", "unit_id", unitID, "request_id", creds.RequestID)
	return unit, nil
}

// CheckCompliance validates a signed invoice against the authority's
// compliance endpoint using the unit's compliance credentials, recording
// the attempt like any other submission.
func (s *onboardingServiceImpl) CheckCompliance(ctx context.Context, unitID, invoiceUUID string) (*entity.Submission, error) {
	unit, err := s.loadUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("compliance check: %w", err)
	}
	if unit.Compliance.Empty() {
		return nil, fmt.Errorf("compliance check: %w: unit %s has no compliance credentials", entity.ErrNotReady, unitID)
	}

	invoice, err := s.invoiceRepo.GetByUUID(ctx, invoiceUUID)
	if err != nil {
		return nil, fmt.Errorf("compliance check: get invoice %s: %w", invoiceUUID, err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("compliance check: %w: invoice %s", entity.ErrNotFound, invoiceUUID)
	}
	if !invoice.Signed() {
		return nil, fmt.Errorf("compliance check: %w: invoice %s is not signed", entity.ErrNotReady, invoiceUUID)
	}

	creds := port.GatewayCredentials{Token: unit.Compliance.Token, Secret: unit.Compliance.Secret}
	result, err := s.gateway.CheckCompliance(ctx, creds, invoice.InvoiceHash, invoice.UUID, invoice.SignedXML)

	submission := &entity.Submission{
		InvoiceUUID:   invoice.UUID,
		Kind:          entity.SubmissionCompliance,
		Status:        entity.SubmissionFailed,
		LastAttemptAt: s.now(),
	}
	if err != nil {
		submission.RawResponse = err.Error()
		if storeErr := s.submissionRepo.Upsert(ctx, submission); storeErr != nil {
			s.logger.Error("Failed to record compliance check attempt", "invoice_uuid", invoiceUUID, "error", storeErr)
		}
		return nil, fmt.Errorf("compliance check for invoice %s: %w", invoiceUUID, err)
	}

	submission.Status = Reconcile(entity.SubmissionCompliance, result)
	submission.ReportingStatus = result.ReportingStatus
	submission.ClearanceStatus = result.ClearanceStatus
	submission.RawResponse = string(result.RawResponse)

	if err := s.submissionRepo.Upsert(ctx, submission); err != nil {
		return nil, fmt.Errorf("compliance check for invoice %s: %w", invoiceUUID, err)
	}

	s.logger.Info("Compliance check completed",
		"unit_id", unitID, "invoice_uuid", invoiceUUID, "status", string(submission.Status))
	return submission, nil
}

// IssueProduction exchanges compliance credentials for the production
// certificate and makes it the active credential set. Guarded: fails when
// compliance credentials are absent.
func (s *onboardingServiceImpl) IssueProduction(ctx context.Context, unitID string) (*entity.Unit, error) {
	lock := s.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	unit, err := s.loadUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("issue production certificate: %w", err)
	}

	machine := lifecycle.NewOnboardingMachine(unit)
	if err := machine.Fire(ctx, lifecycle.TriggerIssueProduction); err != nil {
		return nil, fmt.Errorf("issue production certificate for unit %s: %w", unitID, err)
	}

	creds := port.GatewayCredentials{Token: unit.Compliance.Token, Secret: unit.Compliance.Secret}
	issued, err := s.gateway.IssueProductionCredentials(ctx, creds, unit.Compliance.RequestID)
	if err != nil {
		return nil, fmt.Errorf("issue production certificate for unit %s: %w", unitID, err)
	}

	unit.Production = entity.CredentialSet{Token: issued.Token, Secret: issued.Secret, RequestID: issued.RequestID}
	unit.Active = unit.Production
	unit.State = entity.UnitState(machine.State())
	unit.ProductionMode = true

	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("issue production certificate for unit %s: %w", unitID, err)
	}

	s.logger.Info("Production certificate issued", "unit_id", unitID, "request_id", issued.RequestID)
	return unit, nil
}

// Revoke clears every credential slot. The CSR and key reference survive
// for audit; the unit itself remains, terminally revoked. Idempotent.
func (s *onboardingServiceImpl) Revoke(ctx context.Context, unitID string) (*entity.Unit, error) {
	lock := s.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	unit, err := s.loadUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("revoke unit: %w", err)
	}

	if unit.State == entity.UnitStateRevoked {
		return unit, nil
	}

	machine := lifecycle.NewOnboardingMachine(unit)
	if err := machine.Fire(ctx, lifecycle.TriggerRevoke); err != nil {
		return nil, fmt.Errorf("revoke unit %s: %w", unitID, err)
	}

	unit.Compliance.Clear()
	unit.Production.Clear()
	unit.Active.Clear()
	unit.State = entity.UnitState(machine.State())
	unit.ProductionMode = false

	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("revoke unit %s: %w", unitID, err)
	}

	s.logger.Info("Unit revoked", "unit_id", unitID)
	return unit, nil
}

// GetUnit retrieves a unit by id
func (s *onboardingServiceImpl) GetUnit(ctx context.Context, unitID string) (*entity.Unit, error) {
	return s.loadUnit(ctx, unitID)
}

func (s *onboardingServiceImpl) loadUnit(ctx context.Context, unitID string) (*entity.Unit, error) {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: unit %s", entity.ErrNotFound, unitID)
	}
	return unit, nil
}
