package entity

// Status constants for SignatureFlow
const (
	FlowStatusPending    = "PENDING"
	FlowStatusInProgress = "IN_PROGRESS"
	FlowStatusCompleted  = "COMPLETED"
	FlowStatusCancelled  = "CANCELLED"
)

// Status constants for SignerEntry
const (
	SignerStatusPending = "PENDING"
	SignerStatusSigned  = "SIGNED"
)

// Signature status constants for Document
const (
	DocStatusUnsigned        = "UNSIGNED"
	DocStatusInFlow          = "IN_FLOW"
	DocStatusPartiallySigned = "PARTIALLY_SIGNED"
	DocStatusSigned          = "SIGNED"
)

// Audit action constants
const (
	AuditActionFlowCreated   = "FLOW_CREATED"
	AuditActionFlowSigned    = "FLOW_SIGNED"
	AuditActionFlowCompleted = "FLOW_COMPLETED"
	AuditActionFlowCancelled = "FLOW_CANCELLED"
)
