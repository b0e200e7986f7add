package entity

import "time"

// SignatureFlow represents one routing of a document through an ordered
// list of signers. Flows are never deleted; a terminal flow is kept as the
// audit trail of a completed or abandoned approval.
type SignatureFlow struct {
	ID          string        `json:"id"`
	DocumentID  string        `json:"document_id"`
	Name        string        `json:"name"`
	Signers     []SignerEntry `json:"signers"`
	CurrentStep int           `json:"current_step"`
	Status      string        `json:"status"`
	CreatedBy   string        `json:"created_by"`
	CreatorName string        `json:"creator_name,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SignerEntry is one participant's position within a flow. Position is
// implied by slice index once the flow exists; Order is only the rank the
// creator supplied and is not consulted again after normalization.
type SignerEntry struct {
	UserID   string     `json:"user_id"`
	UserName string     `json:"user_name,omitempty"`
	Order    int        `json:"order"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// IsTerminal reports whether the flow can no longer be mutated.
func (f *SignatureFlow) IsTerminal() bool {
	return f.Status == FlowStatusCompleted || f.Status == FlowStatusCancelled
}

// CurrentSigner returns the entry whose turn it is, or nil when the flow
// is terminal or the step has run past the signer list.
func (f *SignatureFlow) CurrentSigner() *SignerEntry {
	if f.IsTerminal() || f.CurrentStep < 0 || f.CurrentStep >= len(f.Signers) {
		return nil
	}
	return &f.Signers[f.CurrentStep]
}

// SignedCount returns the number of signers that have already signed.
func (f *SignatureFlow) SignedCount() int {
	n := 0
	for _, s := range f.Signers {
		if s.Status == SignerStatusSigned {
			n++
		}
	}
	return n
}
