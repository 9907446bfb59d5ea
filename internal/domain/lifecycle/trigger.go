package lifecycle

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerGenerateCSR     Trigger = "GENERATE_CSR"
	TriggerIssueCompliance Trigger = "ISSUE_COMPLIANCE"
	TriggerIssueProduction Trigger = "ISSUE_PRODUCTION"
	TriggerRevoke          Trigger = "REVOKE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
