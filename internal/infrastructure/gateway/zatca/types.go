package zatca

import "encoding/json"

// csidRequest is the body of a compliance certificate issuance call
type csidRequest struct {
	CSR string `json:"csr"`
}

// productionCsidRequest references the compliance issuance request
type productionCsidRequest struct {
	ComplianceRequestID string `json:"compliance_request_id"`
}

// csidResponse is the authority's answer to both certificate calls.
// requestID arrives as a number on some versions and a string on others.
type csidResponse struct {
	RequestID           json.Number `json:"requestID"`
	DispositionMessage  string      `json:"dispositionMessage"`
	BinarySecurityToken string      `json:"binarySecurityToken"`
	Secret              string      `json:"secret"`
}

// invoiceRequest is the body of compliance-check, clearance and reporting calls
type invoiceRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"`
}

// validationResults is the nested validation report
type validationResults struct {
	Status          string        `json:"status"`
	InfoMessages    []statusEntry `json:"infoMessages"`
	WarningMessages []statusEntry `json:"warningMessages"`
	ErrorMessages   []statusEntry `json:"errorMessages"`
}

type statusEntry struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// invoiceResponse covers the response shapes observed across authority
// versions: success may be signaled through reportingStatus,
// clearanceStatus or validationResults.status depending on the endpoint
// and version.
type invoiceResponse struct {
	ValidationResults *validationResults `json:"validationResults"`
	ReportingStatus   string             `json:"reportingStatus"`
	ClearanceStatus   string             `json:"clearanceStatus"`
	ClearedInvoice    string             `json:"clearedInvoice"`
}
