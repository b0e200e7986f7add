package flow

import "github.com/veridoc/signflow/internal/domain/entity"

// DocumentStatusFor maps a flow's (status, currentStep, signerCount) tuple
// onto the owning document's signature status. The document status is
// recomputed from this function after every committed transition; it is
// never patched incrementally, so it cannot drift from the flow.
//
// While a flow is live the document is IN_FLOW until the first signature
// lands and PARTIALLY_SIGNED from then on. Cancellation preserves partial
// progress as a fact: a flow abandoned after at least one signature leaves
// the document PARTIALLY_SIGNED, a flow abandoned untouched reverts it to
// UNSIGNED.
func DocumentStatusFor(status State, currentStep, signerCount int) string {
	switch status {
	case StateCompleted:
		return entity.DocStatusSigned
	case StateCancelled:
		if currentStep == 0 {
			return entity.DocStatusUnsigned
		}
		return entity.DocStatusPartiallySigned
	default:
		if currentStep > 0 && currentStep < signerCount {
			return entity.DocStatusPartiallySigned
		}
		return entity.DocStatusInFlow
	}
}
