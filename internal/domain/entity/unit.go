package entity

import "time"

// UnitState tracks a unit through the onboarding lifecycle
type UnitState string

const (
	UnitStateDraft            UnitState = "DRAFT"
	UnitStateCsrGenerated     UnitState = "CSR_GENERATED"
	UnitStateComplianceIssued UnitState = "COMPLIANCE_ISSUED"
	UnitStateProductionIssued UnitState = "PRODUCTION_ISSUED"
	UnitStateRevoked          UnitState = "REVOKED"
)

// CredentialSet is one token/secret pair issued by the authority
type CredentialSet struct {
	Token     string
	Secret    string
	RequestID string
}

// Empty reports whether the slot holds no credentials
func (c CredentialSet) Empty() bool {
	return c.Token == "" && c.Secret == ""
}

// Clear wipes the slot
func (c *CredentialSet) Clear() {
	c.Token = ""
	c.Secret = ""
	c.RequestID = ""
}

// Unit is one onboarded tax-registered entity. It owns an invoice series
// and the credentials used to submit against it.
type Unit struct {
	UnitID           string
	VATNumber        string
	OrganizationName string
	CommonName       string
	OrganizationUnit string
	Country          string
	InvoiceType      string
	Location         string
	Industry         string
	CSR              string
	PrivateKeyRef    string
	Compliance       CredentialSet
	Production       CredentialSet
	Active           CredentialSet
	State            UnitState
	ProductionMode   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Onboarded reports whether the unit holds usable active credentials
func (u *Unit) Onboarded() bool {
	return !u.Active.Empty()
}
