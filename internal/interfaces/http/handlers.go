package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/service"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/assembler"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoicingService  service.InvoicingService
	onboardingService service.OnboardingService
	submissionService service.SubmissionService
	registerWriter    *export.RegisterWriter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	invoicingService service.InvoicingService,
	onboardingService service.OnboardingService,
	submissionService service.SubmissionService,
	registerWriter *export.RegisterWriter,
	logger Logger,
) *Handlers {
	return &Handlers{
		invoicingService:  invoicingService,
		onboardingService: onboardingService,
		submissionService: submissionService,
		registerWriter:    registerWriter,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// PartyRequest carries seller or buyer identity in API requests
type PartyRequest struct {
	Name           string `json:"name"`
	VATNumber      string `json:"vat_number"`
	SchemeID       string `json:"scheme_id"`
	ID             string `json:"id"`
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number"`
	District       string `json:"district"`
	City           string `json:"city"`
	PostalZone     string `json:"postal_zone"`
	CountryCode    string `json:"country_code"`
}

// LineRequest is one invoice line in API requests
type LineRequest struct {
	Name            string                   `json:"name"`
	Quantity        decimal.Decimal          `json:"quantity"`
	UnitCode        string                   `json:"unit_code"`
	UnitPrice       decimal.Decimal          `json:"unit_price"`
	VATPercent      decimal.Decimal          `json:"vat_percent"`
	VATCategory     string                   `json:"vat_category"`
	ExemptionReason string                   `json:"exemption_reason,omitempty"`
	Allowances      []AllowanceChargeRequest `json:"allowances,omitempty"`
}

// AllowanceChargeRequest is a discount or charge in API requests
type AllowanceChargeRequest struct {
	IsCharge    bool            `json:"is_charge"`
	Reason      string          `json:"reason"`
	Amount      decimal.Decimal `json:"amount"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
	VATCategory string          `json:"vat_category"`
}

// PrepaymentRequest references an earlier prepayment invoice
type PrepaymentRequest struct {
	InvoiceID   string          `json:"invoice_id"`
	UUID        string          `json:"uuid"`
	IssueDate   string          `json:"issue_date"`
	Amount      decimal.Decimal `json:"amount"`
	VATCategory string          `json:"vat_category"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
}

// IssueInvoiceRequest is the payload for POST /api/invoices
type IssueInvoiceRequest struct {
	UnitID            string                   `json:"unit_id" binding:"required"`
	Kind              string                   `json:"kind" binding:"required"`
	TypeName          string                   `json:"type_name"`
	OriginalInvoiceID string                   `json:"original_invoice_id,omitempty"`
	Note              string                   `json:"note,omitempty"`
	Currency          string                   `json:"currency"`
	ExchangeRate      decimal.Decimal          `json:"exchange_rate"`
	Buyer             PartyRequest             `json:"buyer"`
	Lines             []LineRequest            `json:"lines" binding:"required"`
	Allowances        []AllowanceChargeRequest `json:"allowances,omitempty"`
	Prepayment        *PrepaymentRequest       `json:"prepayment,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	UUID          string `json:"uuid"`
	SerialNumber  string `json:"serial_number"`
	UnitID        string `json:"unit_id"`
	Sequence      int64  `json:"sequence"`
	Kind          string `json:"kind"`
	Profile       string `json:"profile"`
	Status        string `json:"status"`
	IssueTime     string `json:"issue_time"`
	Currency      string `json:"currency"`
	TaxExclusive  string `json:"tax_exclusive"`
	TaxAmount     string `json:"tax_amount"`
	TaxInclusive  string `json:"tax_inclusive"`
	PayableAmount string `json:"payable_amount"`
	InvoiceHash   string `json:"invoice_hash,omitempty"`
	PreviousHash  string `json:"previous_hash"`
	QRCode        string `json:"qr_code,omitempty"`
}

// RegisterUnitAPIRequest is the payload for POST /api/units
type RegisterUnitAPIRequest struct {
	UnitID           string `json:"unit_id" binding:"required"`
	VATNumber        string `json:"vat_number" binding:"required"`
	OrganizationName string `json:"organization_name" binding:"required"`
	CommonName       string `json:"common_name"`
	OrganizationUnit string `json:"organization_unit"`
	Country          string `json:"country"`
	InvoiceType      string `json:"invoice_type"`
	Location         string `json:"location"`
	Industry         string `json:"industry"`
	Production       bool   `json:"production"`
}

// UnitResponse represents a unit in API responses. Credential secrets are
// never echoed back.
type UnitResponse struct {
	UnitID           string `json:"unit_id"`
	VATNumber        string `json:"vat_number"`
	OrganizationName string `json:"organization_name"`
	State            string `json:"state"`
	ProductionMode   bool   `json:"production_mode"`
	HasCompliance    bool   `json:"has_compliance_credentials"`
	HasProduction    bool   `json:"has_production_credentials"`
	CSR              string `json:"csr,omitempty"`
}

// ComplianceRequest is the payload for POST /api/units/:id/compliance
type ComplianceRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// ComplianceCheckRequest is the payload for POST /api/units/:id/compliance-check
type ComplianceCheckRequest struct {
	InvoiceUUID string `json:"invoice_uuid" binding:"required"`
}

// SubmitRequest is the payload for POST /api/invoices/:uuid/submit
type SubmitRequest struct {
	Production bool `json:"production"`
}

// SubmissionResponse represents a submission record in API responses
type SubmissionResponse struct {
	InvoiceUUID     string `json:"invoice_uuid"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	ReportingStatus string `json:"reporting_status,omitempty"`
	ClearanceStatus string `json:"clearance_status,omitempty"`
	AttemptCount    int    `json:"attempt_count"`
	LastAttemptAt   string `json:"last_attempt_at"`
}

// ListSubmissionsRequest represents query parameters for listing submissions
type ListSubmissionsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// IssueInvoice handles POST /api/invoices
func (h *Handlers) IssueInvoice(c *gin.Context) {
	var req IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid issue request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	kind := entity.InvoiceKind(req.Kind)
	if !kind.IsValid() {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("unknown document kind %q", req.Kind),
		})
		return
	}

	invoice, err := h.invoicingService.Issue(c.Request.Context(), service.IssueRequest{
		UnitID:            req.UnitID,
		Kind:              kind,
		TypeName:          req.TypeName,
		OriginalInvoiceID: req.OriginalInvoiceID,
		Note:              req.Note,
		Currency:          req.Currency,
		ExchangeRate:      req.ExchangeRate,
		Buyer:             toParty(req.Buyer),
		Lines:             toLines(req.Lines),
		Allowances:        toAllowances(req.Allowances),
		Prepayment:        toPrepayment(req.Prepayment),
	})
	if err != nil {
		h.respondError(c, "issue invoice", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// GetInvoice handles GET /api/invoices/:uuid
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.invoicingService.GetInvoice(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.respondError(c, "get invoice", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// GetInvoiceXML handles GET /api/invoices/:uuid/xml and returns the signed
// document, falling back to the unsigned rendering when signing has not
// completed
func (h *Handlers) GetInvoiceXML(c *gin.Context) {
	invoice, err := h.invoicingService.GetInvoice(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.respondError(c, "get invoice", err)
		return
	}

	payload := invoice.SignedXML
	if len(payload) == 0 {
		payload = invoice.UnsignedXML
	}
	c.Data(http.StatusOK, "application/xml", payload)
}

// ListSeries handles GET /api/series/:key/invoices
func (h *Handlers) ListSeries(c *gin.Context) {
	invoices, err := h.invoicingService.ListSeries(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.respondError(c, "list series", err)
		return
	}

	responses := make([]InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		responses = append(responses, toInvoiceResponse(invoice))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// VerifyChain handles GET /api/series/:key/verify
func (h *Handlers) VerifyChain(c *gin.Context) {
	if err := h.invoicingService.VerifyChain(c.Request.Context(), c.Param("key")); err != nil {
		if errors.Is(err, entity.ErrChainBroken) {
			c.JSON(http.StatusConflict, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.respondError(c, "verify chain", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"series": c.Param("key"), "chain": "intact"},
	})
}

// ExportRegister handles GET /api/series/:key/register and streams the
// submission register workbook
func (h *Handlers) ExportRegister(c *gin.Context) {
	seriesKey := c.Param("key")
	invoices, err := h.invoicingService.ListSeries(c.Request.Context(), seriesKey)
	if err != nil {
		h.respondError(c, "export register", err)
		return
	}

	submissions := make(map[string]*entity.Submission, len(invoices))
	for _, invoice := range invoices {
		submission, err := h.submissionService.GetSubmission(c.Request.Context(), invoice.UUID)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				continue
			}
			h.respondError(c, "export register", err)
			return
		}
		submissions[invoice.UUID] = submission
	}

	filename := fmt.Sprintf("register-%s-%s.xlsx", seriesKey, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.registerWriter.WriteRegister(c.Writer, invoices, submissions); err != nil {
		h.logger.Error("Register export failed", "series", seriesKey, "error", err)
	}
}

// RegisterUnit handles POST /api/units
func (h *Handlers) RegisterUnit(c *gin.Context) {
	var req RegisterUnitAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid register unit request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	unit, err := h.onboardingService.RegisterUnit(c.Request.Context(), service.RegisterUnitRequest{
		UnitID:           req.UnitID,
		VATNumber:        req.VATNumber,
		OrganizationName: req.OrganizationName,
		CommonName:       req.CommonName,
		OrganizationUnit: req.OrganizationUnit,
		Country:          req.Country,
		InvoiceType:      req.InvoiceType,
		Location:         req.Location,
		Industry:         req.Industry,
		Production:       req.Production,
	})
	if err != nil {
		h.respondError(c, "register unit", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toUnitResponse(unit, true),
	})
}

// GetUnit handles GET /api/units/:id
func (h *Handlers) GetUnit(c *gin.Context) {
	unit, err := h.onboardingService.GetUnit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get unit", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toUnitResponse(unit, false),
	})
}

// IssueCompliance handles POST /api/units/:id/compliance
func (h *Handlers) IssueCompliance(c *gin.Context) {
	var req ComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "otp is required",
		})
		return
	}

	unit, err := h.onboardingService.IssueCompliance(c.Request.Context(), c.Param("id"), req.OTP)
	if err != nil {
		h.respondError(c, "issue compliance certificate", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toUnitResponse(unit, false),
	})
}

// CheckCompliance handles POST /api/units/:id/compliance-check
func (h *Handlers) CheckCompliance(c *gin.Context) {
	var req ComplianceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invoice_uuid is required",
		})
		return
	}

	submission, err := h.onboardingService.CheckCompliance(c.Request.Context(), c.Param("id"), req.InvoiceUUID)
	if err != nil {
		h.respondError(c, "compliance check", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSubmissionResponse(submission),
	})
}

// IssueProduction handles POST /api/units/:id/production
func (h *Handlers) IssueProduction(c *gin.Context) {
	unit, err := h.onboardingService.IssueProduction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "issue production certificate", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toUnitResponse(unit, false),
	})
}

// RevokeUnit handles POST /api/units/:id/revoke
func (h *Handlers) RevokeUnit(c *gin.Context) {
	unit, err := h.onboardingService.Revoke(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "revoke unit", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toUnitResponse(unit, false),
	})
}

// SubmitInvoice handles POST /api/invoices/:uuid/submit
func (h *Handlers) SubmitInvoice(c *gin.Context) {
	// An empty body means defaults
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	submission, err := h.submissionService.Submit(c.Request.Context(), c.Param("uuid"), req.Production)
	if err != nil {
		h.respondError(c, "submit invoice", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSubmissionResponse(submission),
	})
}

// GetSubmission handles GET /api/invoices/:uuid/submission
func (h *Handlers) GetSubmission(c *gin.Context) {
	submission, err := h.submissionService.GetSubmission(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.respondError(c, "get submission", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSubmissionResponse(submission),
	})
}

// ListSubmissions handles GET /api/submissions
func (h *Handlers) ListSubmissions(c *gin.Context) {
	var req ListSubmissionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	submissions, err := h.submissionService.ListSubmissions(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, "list submissions", err)
		return
	}

	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, toSubmissionResponse(submission))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// respondError maps domain sentinels to HTTP status codes
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	h.logger.Error("Request failed", "operation", op, "error", err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotReady):
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

func toParty(p PartyRequest) assembler.Party {
	return assembler.Party{
		Name:           p.Name,
		VATNumber:      p.VATNumber,
		SchemeID:       p.SchemeID,
		ID:             p.ID,
		Street:         p.Street,
		BuildingNumber: p.BuildingNumber,
		District:       p.District,
		City:           p.City,
		PostalZone:     p.PostalZone,
		CountryCode:    p.CountryCode,
	}
}

func toLines(lines []LineRequest) []assembler.Line {
	result := make([]assembler.Line, 0, len(lines))
	for _, l := range lines {
		result = append(result, assembler.Line{
			Name:            l.Name,
			Quantity:        l.Quantity,
			UnitCode:        l.UnitCode,
			UnitPrice:       l.UnitPrice,
			VATPercent:      l.VATPercent,
			VATCategory:     l.VATCategory,
			ExemptionReason: l.ExemptionReason,
			Allowances:      toAllowances(l.Allowances),
		})
	}
	return result
}

func toAllowances(allowances []AllowanceChargeRequest) []assembler.AllowanceCharge {
	if len(allowances) == 0 {
		return nil
	}
	result := make([]assembler.AllowanceCharge, 0, len(allowances))
	for _, a := range allowances {
		result = append(result, assembler.AllowanceCharge{
			IsCharge:    a.IsCharge,
			Reason:      a.Reason,
			Amount:      a.Amount,
			VATPercent:  a.VATPercent,
			VATCategory: a.VATCategory,
		})
	}
	return result
}

func toPrepayment(p *PrepaymentRequest) *assembler.Prepayment {
	if p == nil {
		return nil
	}
	return &assembler.Prepayment{
		InvoiceID:   p.InvoiceID,
		UUID:        p.UUID,
		IssueDate:   p.IssueDate,
		Amount:      p.Amount,
		VATCategory: p.VATCategory,
		VATPercent:  p.VATPercent,
	}
}

// toInvoiceResponse converts domain entity to API response
func toInvoiceResponse(invoice *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		UUID:          invoice.UUID,
		SerialNumber:  invoice.SerialNumber,
		UnitID:        invoice.SeriesKey,
		Sequence:      invoice.Sequence,
		Kind:          string(invoice.Kind),
		Profile:       string(invoice.Profile),
		Status:        string(invoice.Status),
		IssueTime:     invoice.IssueTime.Format(time.RFC3339),
		Currency:      invoice.Currency,
		TaxExclusive:  invoice.TaxExclusive.StringFixed(2),
		TaxAmount:     invoice.TaxAmount.StringFixed(2),
		TaxInclusive:  invoice.TaxInclusive.StringFixed(2),
		PayableAmount: invoice.PayableAmount.StringFixed(2),
		InvoiceHash:   invoice.InvoiceHash,
		PreviousHash:  invoice.PreviousHash,
		QRCode:        invoice.QRCode,
	}
}

func toUnitResponse(unit *entity.Unit, includeCSR bool) UnitResponse {
	resp := UnitResponse{
		UnitID:           unit.UnitID,
		VATNumber:        unit.VATNumber,
		OrganizationName: unit.OrganizationName,
		State:            string(unit.State),
		ProductionMode:   unit.ProductionMode,
		HasCompliance:    !unit.Compliance.Empty(),
		HasProduction:    !unit.Production.Empty(),
	}
	if includeCSR {
		resp.CSR = unit.CSR
	}
	return resp
}

func toSubmissionResponse(submission *entity.Submission) SubmissionResponse {
	return SubmissionResponse{
		InvoiceUUID:     submission.InvoiceUUID,
		Kind:            string(submission.Kind),
		Status:          string(submission.Status),
		ReportingStatus: submission.ReportingStatus,
		ClearanceStatus: submission.ClearanceStatus,
		AttemptCount:    submission.AttemptCount,
		LastAttemptAt:   submission.LastAttemptAt.Format(time.RFC3339),
	}
}
