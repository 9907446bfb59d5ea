package service

import (
	"testing"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		kind     entity.SubmissionKind
		result   port.SubmissionResult
		expected entity.SubmissionStatus
	}{
		{
			name:     "reporting accepted via reporting status",
			kind:     entity.SubmissionReporting,
			result:   port.SubmissionResult{ReportingStatus: "REPORTED"},
			expected: entity.SubmissionReported,
		},
		{
			name:     "clearance accepted via clearance status",
			kind:     entity.SubmissionClearance,
			result:   port.SubmissionResult{ClearanceStatus: "CLEARED"},
			expected: entity.SubmissionCleared,
		},
		{
			name:     "clearance accepted via validation pass only",
			kind:     entity.SubmissionClearance,
			result:   port.SubmissionResult{ValidationStatus: "PASS"},
			expected: entity.SubmissionCleared,
		},
		{
			name:     "compliance check accepted via validation pass",
			kind:     entity.SubmissionCompliance,
			result:   port.SubmissionResult{ValidationStatus: "PASS"},
			expected: entity.SubmissionReported,
		},
		{
			name:     "no success signal means failed",
			kind:     entity.SubmissionReporting,
			result:   port.SubmissionResult{ReportingStatus: "NOT_REPORTED", ValidationStatus: "ERROR"},
			expected: entity.SubmissionFailed,
		},
		{
			name:     "empty response means failed",
			kind:     entity.SubmissionClearance,
			result:   port.SubmissionResult{},
			expected: entity.SubmissionFailed,
		},
		{
			name:     "lowercase signal is not accepted",
			kind:     entity.SubmissionReporting,
			result:   port.SubmissionResult{ReportingStatus: "reported"},
			expected: entity.SubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.kind, &tt.result); got != tt.expected {
				t.Errorf("Reconcile() = %v, want %v", got, tt.expected)
			}
		})
	}
}
