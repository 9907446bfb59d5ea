package service

import (
	"context"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// testLogger discards output but records messages for assertions
type testLogger struct {
	infos  []string
	errors []string
}

func (l *testLogger) Info(msg string, keysAndValues ...interface{}) {
	l.infos = append(l.infos, msg)
}

func (l *testLogger) Error(msg string, keysAndValues ...interface{}) {
	l.errors = append(l.errors, msg)
}

type mockSeriesRepo struct {
	nextSequenceFunc func(ctx context.Context, seriesKey string) (int64, error)
	getFunc          func(ctx context.Context, seriesKey string) (*entity.InvoiceSeries, error)
}

func (m *mockSeriesRepo) NextSequence(ctx context.Context, seriesKey string) (int64, error) {
	if m.nextSequenceFunc != nil {
		return m.nextSequenceFunc(ctx, seriesKey)
	}
	return 1, nil
}

func (m *mockSeriesRepo) Get(ctx context.Context, seriesKey string) (*entity.InvoiceSeries, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, seriesKey)
	}
	return nil, nil
}

type mockInvoiceRepo struct {
	createFunc       func(ctx context.Context, invoice *entity.Invoice) error
	getByUUIDFunc    func(ctx context.Context, uuid string) (*entity.Invoice, error)
	getLatestFunc    func(ctx context.Context, seriesKey string) (*entity.Invoice, error)
	listBySeriesFunc func(ctx context.Context, seriesKey string) ([]*entity.Invoice, error)
	markSignedFunc   func(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error
	updateStatusFunc func(ctx context.Context, uuid string, status entity.InvoiceStatus) error
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, invoice)
	}
	return nil
}

func (m *mockInvoiceRepo) GetByUUID(ctx context.Context, uuid string) (*entity.Invoice, error) {
	if m.getByUUIDFunc != nil {
		return m.getByUUIDFunc(ctx, uuid)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) GetLatestBySeries(ctx context.Context, seriesKey string) (*entity.Invoice, error) {
	if m.getLatestFunc != nil {
		return m.getLatestFunc(ctx, seriesKey)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) ListBySeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error) {
	if m.listBySeriesFunc != nil {
		return m.listBySeriesFunc(ctx, seriesKey)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) MarkSigned(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error {
	if m.markSignedFunc != nil {
		return m.markSignedFunc(ctx, uuid, signedXML, hash, qr)
	}
	return nil
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, uuid string, status entity.InvoiceStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, uuid, status)
	}
	return nil
}

type mockUnitRepo struct {
	createFunc  func(ctx context.Context, unit *entity.Unit) error
	getByIDFunc func(ctx context.Context, unitID string) (*entity.Unit, error)
	updateFunc  func(ctx context.Context, unit *entity.Unit) error
}

func (m *mockUnitRepo) Create(ctx context.Context, unit *entity.Unit) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, unit)
	}
	return nil
}

func (m *mockUnitRepo) GetByID(ctx context.Context, unitID string) (*entity.Unit, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, unitID)
	}
	return nil, nil
}

func (m *mockUnitRepo) Update(ctx context.Context, unit *entity.Unit) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, unit)
	}
	return nil
}

type mockSubmissionRepo struct {
	upserted   []*entity.Submission
	upsertFunc func(ctx context.Context, sub *entity.Submission) error
	getFunc    func(ctx context.Context, invoiceUUID string) (*entity.Submission, error)
	listFunc   func(ctx context.Context, limit, offset int) ([]*entity.Submission, error)
}

func (m *mockSubmissionRepo) Upsert(ctx context.Context, sub *entity.Submission) error {
	m.upserted = append(m.upserted, sub)
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, sub)
	}
	return nil
}

func (m *mockSubmissionRepo) GetByInvoiceUUID(ctx context.Context, invoiceUUID string) (*entity.Submission, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, invoiceUUID)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) List(ctx context.Context, limit, offset int) ([]*entity.Submission, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return nil, nil
}

type mockSigner struct {
	generateFunc func(ctx context.Context, cfg port.CSRConfig) (*port.CSRResult, error)
	signFunc     func(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*port.SignResult, error)
}

func (m *mockSigner) GenerateKeyAndCSR(ctx context.Context, cfg port.CSRConfig) (*port.CSRResult, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, cfg)
	}
	return &port.CSRResult{PrivateKeyRef: "key-ref", CSR: "csr-pem"}, nil
}

func (m *mockSigner) Sign(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*port.SignResult, error) {
	if m.signFunc != nil {
		return m.signFunc(ctx, invoiceXML, privateKeyRef)
	}
	return &port.SignResult{
		SignedXML:   append([]byte("signed:"), invoiceXML...),
		InvoiceHash: "hash-value",
		QRCode:      "qr-value",
	}, nil
}

type mockGateway struct {
	issueComplianceFunc func(ctx context.Context, csr, otp string) (*port.CredentialResult, error)
	issueProductionFunc func(ctx context.Context, creds port.GatewayCredentials, complianceRequestID string) (*port.CredentialResult, error)
	checkComplianceFunc func(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error)
	submitClearanceFunc func(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error)
	submitReportingFunc func(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error)
}

func (m *mockGateway) IssueComplianceCredentials(ctx context.Context, csr, otp string) (*port.CredentialResult, error) {
	if m.issueComplianceFunc != nil {
		return m.issueComplianceFunc(ctx, csr, otp)
	}
	return &port.CredentialResult{Token: "c-token", Secret: "c-secret", RequestID: "req-1"}, nil
}

func (m *mockGateway) IssueProductionCredentials(ctx context.Context, creds port.GatewayCredentials, complianceRequestID string) (*port.CredentialResult, error) {
	if m.issueProductionFunc != nil {
		return m.issueProductionFunc(ctx, creds, complianceRequestID)
	}
	return &port.CredentialResult{Token: "p-token", Secret: "p-secret", RequestID: "req-2"}, nil
}

func (m *mockGateway) CheckCompliance(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	if m.checkComplianceFunc != nil {
		return m.checkComplianceFunc(ctx, creds, invoiceHash, uuid, signedXML)
	}
	return &port.SubmissionResult{ValidationStatus: "PASS"}, nil
}

func (m *mockGateway) SubmitClearance(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	if m.submitClearanceFunc != nil {
		return m.submitClearanceFunc(ctx, creds, invoiceHash, uuid, signedXML)
	}
	return &port.SubmissionResult{ClearanceStatus: "CLEARED"}, nil
}

func (m *mockGateway) SubmitReporting(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	if m.submitReportingFunc != nil {
		return m.submitReportingFunc(ctx, creds, invoiceHash, uuid, signedXML)
	}
	return &port.SubmissionResult{ReportingStatus: "REPORTED"}, nil
}

// passthroughTxManager runs the function directly; transactional scope is
// covered by the sqlite package tests
type passthroughTxManager struct{}

func (m *passthroughTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Verify the mocks satisfy their ports
var (
	_ port.SeriesRepository     = (*mockSeriesRepo)(nil)
	_ port.InvoiceRepository    = (*mockInvoiceRepo)(nil)
	_ port.UnitRepository       = (*mockUnitRepo)(nil)
	_ port.SubmissionRepository = (*mockSubmissionRepo)(nil)
	_ port.Signer               = (*mockSigner)(nil)
	_ port.AuthorityGateway     = (*mockGateway)(nil)
	_ port.TransactionManager   = (*passthroughTxManager)(nil)
)
