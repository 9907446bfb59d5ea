// Package zatca implements the tax authority gateway over HTTP. Certificate
// issuance authenticates with a one-time code; every other call uses basic
// auth over the stored token/secret pair.
package zatca

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
)

// DefaultTimeout bounds every gateway call; a timed-out call is treated as
// failed and recorded, never retried inside the client.
const DefaultTimeout = 30 * time.Second

const apiVersion = "V2"

// Config holds gateway client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements port.AuthorityGateway
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// IssueComplianceCredentials exchanges a CSR and one-time code for
// compliance credentials
func (c *Client) IssueComplianceCredentials(ctx context.Context, csr, otp string) (*port.CredentialResult, error) {
	body := csidRequest{CSR: base64.StdEncoding.EncodeToString([]byte(csr))}

	req, err := c.newRequest(ctx, http.MethodPost, "/compliance", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("OTP", otp)

	return c.doCredentialCall(req, "compliance csid")
}

// IssueProductionCredentials exchanges compliance credentials for the
// production certificate
func (c *Client) IssueProductionCredentials(ctx context.Context, creds port.GatewayCredentials, complianceRequestID string) (*port.CredentialResult, error) {
	body := productionCsidRequest{ComplianceRequestID: complianceRequestID}

	req, err := c.newRequest(ctx, http.MethodPost, "/production/csids", body)
	if err != nil {
		return nil, err
	}
	setBasicAuth(req, creds)

	return c.doCredentialCall(req, "production csid")
}

// CheckCompliance validates a signed invoice against the compliance endpoint
func (c *Client) CheckCompliance(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	return c.doInvoiceCall(ctx, creds, "/compliance/invoices", invoiceHash, uuid, signedXML, false)
}

// SubmitClearance submits a standard invoice for synchronous clearance
func (c *Client) SubmitClearance(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	return c.doInvoiceCall(ctx, creds, "/invoices/clearance/single", invoiceHash, uuid, signedXML, true)
}

// SubmitReporting registers a simplified invoice through the reporting flow
func (c *Client) SubmitReporting(ctx context.Context, creds port.GatewayCredentials, invoiceHash, uuid string, signedXML []byte) (*port.SubmissionResult, error) {
	return c.doInvoiceCall(ctx, creds, "/invoices/reporting/single", invoiceHash, uuid, signedXML, false)
}

func (c *Client) doInvoiceCall(ctx context.Context, creds port.GatewayCredentials, path, invoiceHash, uuid string, signedXML []byte, clearance bool) (*port.SubmissionResult, error) {
	body := invoiceRequest{
		InvoiceHash: invoiceHash,
		UUID:        uuid,
		Invoice:     base64.StdEncoding.EncodeToString(signedXML),
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	setBasicAuth(req, creds)
	if clearance {
		req.Header.Set("Clearance-Status", "1")
	}

	raw, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("authority %s call: %w", path, err)
	}

	var resp invoiceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("authority %s call: decode response (http %d): %w", path, status, err)
	}

	result := &port.SubmissionResult{
		ReportingStatus: resp.ReportingStatus,
		ClearanceStatus: resp.ClearanceStatus,
		ClearedInvoice:  resp.ClearedInvoice,
		RawResponse:     raw,
	}
	if resp.ValidationResults != nil {
		result.ValidationStatus = resp.ValidationResults.Status
	}

	c.logger.Info("Authority submission call completed",
		zap.String("path", path),
		zap.String("uuid", uuid),
		zap.Int("http_status", status),
		zap.String("reporting_status", result.ReportingStatus),
		zap.String("clearance_status", result.ClearanceStatus),
		zap.String("validation_status", result.ValidationStatus))

	return result, nil
}

func (c *Client) doCredentialCall(req *http.Request, operation string) (*port.CredentialResult, error) {
	raw, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("authority %s call: %w", operation, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("authority %s call: http %d: %s", operation, status, truncate(raw, 512))
	}

	var resp csidResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("authority %s call: decode response: %w", operation, err)
	}
	if resp.BinarySecurityToken == "" || resp.Secret == "" {
		return nil, fmt.Errorf("authority %s call: response missing credentials (disposition: %s)", operation, resp.DispositionMessage)
	}

	c.logger.Info("Authority credential call completed",
		zap.String("operation", operation),
		zap.String("request_id", resp.RequestID.String()),
		zap.String("disposition", resp.DispositionMessage))

	return &port.CredentialResult{
		Token:     resp.BinarySecurityToken,
		Secret:    resp.Secret,
		RequestID: resp.RequestID.String(),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", apiVersion)
	req.Header.Set("Accept-Language", "en")

	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	return raw, resp.StatusCode, nil
}

// setBasicAuth builds the Authorization header from the stored token/secret
// pair: base64(token:secret)
func setBasicAuth(req *http.Request, creds port.GatewayCredentials) {
	auth := base64.StdEncoding.EncodeToString([]byte(creds.Token + ":" + creds.Secret))
	req.Header.Set("Authorization", "Basic "+auth)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Verify interface compliance
var _ port.AuthorityGateway = (*Client)(nil)
