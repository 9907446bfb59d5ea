package port

import "context"

// CSRConfig carries the organizational identity fields the signing tool
// embeds into a certificate signing request
type CSRConfig struct {
	CommonName       string
	OrganizationName string
	OrganizationUnit string
	Country          string
	VATNumber        string
	InvoiceType      string
	Location         string
	Industry         string
	Production       bool
}

// CSRResult is the output of key and CSR generation
type CSRResult struct {
	PrivateKeyRef string
	CSR           string
}

// SignResult is the output of signing one assembled document
type SignResult struct {
	SignedXML   []byte
	InvoiceHash string
	QRCode      string
}

// Signer defines the external signing capability. It is a synchronous black
// box: failures surface with the underlying diagnostic message.
type Signer interface {
	GenerateKeyAndCSR(ctx context.Context, cfg CSRConfig) (*CSRResult, error)
	Sign(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*SignResult, error)
}

// CredentialResult is the authority's answer to a certificate issuance call
type CredentialResult struct {
	Token     string
	Secret    string
	RequestID string
}

// SubmissionResult is the authority's answer to a compliance check,
// clearance or reporting call. The three status fields are alternatives:
// different authority versions signal success through different ones.
type SubmissionResult struct {
	ReportingStatus  string
	ClearanceStatus  string
	ValidationStatus string
	ClearedInvoice   string
	RawResponse      []byte
}

// GatewayCredentials authenticates submission calls (basic auth token:secret)
type GatewayCredentials struct {
	Token  string
	Secret string
}

// AuthorityGateway defines the tax authority HTTP operations
type AuthorityGateway interface {
	IssueComplianceCredentials(ctx context.Context, csr, otp string) (*CredentialResult, error)
	IssueProductionCredentials(ctx context.Context, creds GatewayCredentials, complianceRequestID string) (*CredentialResult, error)
	CheckCompliance(ctx context.Context, creds GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*SubmissionResult, error)
	SubmitClearance(ctx context.Context, creds GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*SubmissionResult, error)
	SubmitReporting(ctx context.Context, creds GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*SubmissionResult, error)
}
