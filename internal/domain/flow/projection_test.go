package flow

import (
	"testing"

	"github.com/veridoc/signflow/internal/domain/entity"
)

func TestDocumentStatusFor(t *testing.T) {
	tests := []struct {
		name        string
		status      State
		currentStep int
		signerCount int
		expected    string
	}{
		{"flow created", StatePending, 0, 3, entity.DocStatusInFlow},
		{"first of three signed", StateInProgress, 1, 3, entity.DocStatusPartiallySigned},
		{"second of three signed", StateInProgress, 2, 3, entity.DocStatusPartiallySigned},
		{"all signed", StateCompleted, 3, 3, entity.DocStatusSigned},
		{"single signer completed", StateCompleted, 1, 1, entity.DocStatusSigned},
		{"cancelled untouched", StateCancelled, 0, 3, entity.DocStatusUnsigned},
		{"cancelled after one signature", StateCancelled, 1, 3, entity.DocStatusPartiallySigned},
		{"cancelled one short of done", StateCancelled, 2, 3, entity.DocStatusPartiallySigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DocumentStatusFor(tt.status, tt.currentStep, tt.signerCount)
			if got != tt.expected {
				t.Errorf("DocumentStatusFor(%s, %d, %d) = %s, want %s",
					tt.status, tt.currentStep, tt.signerCount, got, tt.expected)
			}
		})
	}
}

// The projection must be a pure function of the tuple: same inputs, same
// output, regardless of call order.
func TestDocumentStatusFor_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := DocumentStatusFor(StateInProgress, 1, 2); got != entity.DocStatusPartiallySigned {
			t.Fatalf("projection not deterministic: got %s on call %d", got, i)
		}
	}
}
