package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

const registerSheet = "Submissions"

var registerHeaders = []string{
	"Serial Number",
	"Invoice UUID",
	"Unit",
	"Sequence",
	"Profile",
	"Workflow",
	"Status",
	"Reporting Status",
	"Clearance Status",
	"Attempts",
	"Last Attempt",
	"Payable Amount",
	"Currency",
}

// RegisterWriter renders the submission register workbook handed to
// auditors. One row per invoice, joined with its latest submission record
// when one exists.
type RegisterWriter struct {
	logger *zap.Logger
}

// NewRegisterWriter creates a new register writer
func NewRegisterWriter(logger *zap.Logger) *RegisterWriter {
	return &RegisterWriter{logger: logger}
}

// WriteRegister builds the workbook and streams it to w
func (rw *RegisterWriter) WriteRegister(w io.Writer, invoices []*entity.Invoice, submissions map[string]*entity.Submission) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		rw.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	for col, header := range registerHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		rw.setCell(f, cell, header)
	}

	for i, invoice := range invoices {
		row := i + 2
		values := rw.rowValues(invoice, submissions[invoice.UUID])
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			rw.setCell(f, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	rw.logger.Info("Submission register exported",
		zap.Int("invoices", len(invoices)))

	return nil
}

func (rw *RegisterWriter) rowValues(invoice *entity.Invoice, submission *entity.Submission) []interface{} {
	values := []interface{}{
		invoice.SerialNumber,
		invoice.UUID,
		invoice.SeriesKey,
		invoice.Sequence,
		string(invoice.Profile),
		"",
		string(invoice.Status),
		"",
		"",
		0,
		"",
		invoice.PayableAmount.StringFixed(2),
		invoice.Currency,
	}
	if submission != nil {
		values[5] = string(submission.Kind)
		values[6] = string(submission.Status)
		values[7] = submission.ReportingStatus
		values[8] = submission.ClearanceStatus
		values[9] = submission.AttemptCount
		values[10] = submission.LastAttemptAt.Format("2006-01-02 15:04:05")
	}
	return values
}

// setCell sets a cell value in the workbook
func (rw *RegisterWriter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(registerSheet, cell, value); err != nil {
		rw.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
