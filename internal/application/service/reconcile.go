package service

import (
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// Authority success signals. The response shape changed across authority
// versions, so success may arrive through any of the three fields; the
// reconciler checks them in this priority order.
const (
	signalReported = "REPORTED"
	signalCleared  = "CLEARED"
	signalPass     = "PASS"
)

// Reconcile derives the canonical submission status from the authority
// response. The status is computed deterministically from the response
// alone, never inferred from attempt counts.
func Reconcile(kind entity.SubmissionKind, result *port.SubmissionResult) entity.SubmissionStatus {
	accepted := result.ReportingStatus == signalReported ||
		result.ClearanceStatus == signalCleared ||
		result.ValidationStatus == signalPass

	if !accepted {
		return entity.SubmissionFailed
	}

	if kind == entity.SubmissionClearance {
		return entity.SubmissionCleared
	}
	return entity.SubmissionReported
}
