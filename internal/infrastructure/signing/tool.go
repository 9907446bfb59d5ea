// Package signing adapts the external signing tool behind port.Signer. The
// tool is a black box: it receives JSON on stdin and answers JSON on
// stdout; its failures surface with the underlying diagnostic message.
package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
)

// Config holds signing tool configuration
type Config struct {
	ToolPath string
	Timeout  time.Duration
}

// Tool implements port.Signer by invoking the configured external binary
type Tool struct {
	cfg    Config
	logger *zap.Logger
}

// NewTool creates a new signing tool adapter
func NewTool(cfg Config, logger *zap.Logger) *Tool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Tool{cfg: cfg, logger: logger}
}

type csrOutput struct {
	PrivateKeyRef string `json:"privateKeyRef"`
	CSR           string `json:"csr"`
	Error         string `json:"error"`
}

type signInput struct {
	Invoice       string `json:"invoice"`
	PrivateKeyRef string `json:"privateKeyRef"`
}

type signOutput struct {
	SignedInvoice string `json:"signedInvoice"`
	InvoiceHash   string `json:"invoiceHash"`
	QRCode        string `json:"qrCode"`
	Error         string `json:"error"`
}

// GenerateKeyAndCSR asks the tool for a fresh key pair and CSR
func (t *Tool) GenerateKeyAndCSR(ctx context.Context, cfg port.CSRConfig) (*port.CSRResult, error) {
	var out csrOutput
	if err := t.run(ctx, "csr", cfg, &out); err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("signing failed: %s", out.Error)
	}

	return &port.CSRResult{PrivateKeyRef: out.PrivateKeyRef, CSR: out.CSR}, nil
}

// Sign signs an assembled document and returns the signed bytes, digest and
// QR payload
func (t *Tool) Sign(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*port.SignResult, error) {
	in := signInput{
		Invoice:       base64.StdEncoding.EncodeToString(invoiceXML),
		PrivateKeyRef: privateKeyRef,
	}

	var out signOutput
	if err := t.run(ctx, "sign", in, &out); err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("signing failed: %s", out.Error)
	}

	signedXML, err := base64.StdEncoding.DecodeString(out.SignedInvoice)
	if err != nil {
		return nil, fmt.Errorf("signing failed: invalid signed payload: %w", err)
	}

	return &port.SignResult{
		SignedXML:   signedXML,
		InvoiceHash: out.InvoiceHash,
		QRCode:      out.QRCode,
	}, nil
}

func (t *Tool) run(ctx context.Context, subcommand string, input interface{}, output interface{}) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.cfg.ToolPath, subcommand)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Error("Signing tool invocation failed",
			zap.String("subcommand", subcommand),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return fmt.Errorf("%s: %s", err, stderr.String())
	}

	if err := json.Unmarshal(stdout.Bytes(), output); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.Signer = (*Tool)(nil)
