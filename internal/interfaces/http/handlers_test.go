package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/application/service"
	"github.com/veridoc/signflow/internal/domain/entity"
	"github.com/veridoc/signflow/internal/domain/flow"
)

type stubFlowService struct {
	createFunc       func(ctx context.Context, input service.CreateFlowInput) (*entity.SignatureFlow, error)
	advanceFunc      func(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error)
	recordSignedFunc func(ctx context.Context, flowID, signerID string) (*entity.SignatureFlow, error)
	cancelFunc       func(ctx context.Context, flowID, actorID string) (*entity.SignatureFlow, error)
	getByIDFunc      func(ctx context.Context, id string) (*entity.SignatureFlow, error)
	listFunc         func(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error)
	pendingFunc      func(ctx context.Context, userID string) ([]*entity.SignatureFlow, error)
}

func (s *stubFlowService) Create(ctx context.Context, input service.CreateFlowInput) (*entity.SignatureFlow, error) {
	return s.createFunc(ctx, input)
}

func (s *stubFlowService) Advance(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error) {
	return s.advanceFunc(ctx, flowID, signerID, artifact, extension)
}

func (s *stubFlowService) RecordSigned(ctx context.Context, flowID, signerID string) (*entity.SignatureFlow, error) {
	return s.recordSignedFunc(ctx, flowID, signerID)
}

func (s *stubFlowService) Cancel(ctx context.Context, flowID, actorID string) (*entity.SignatureFlow, error) {
	return s.cancelFunc(ctx, flowID, actorID)
}

func (s *stubFlowService) GetByID(ctx context.Context, id string) (*entity.SignatureFlow, error) {
	return s.getByIDFunc(ctx, id)
}

func (s *stubFlowService) List(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error) {
	return s.listFunc(ctx, filter)
}

func (s *stubFlowService) GetPendingForUser(ctx context.Context, userID string) ([]*entity.SignatureFlow, error) {
	return s.pendingFunc(ctx, userID)
}

type stubAuditService struct {
	trailFunc func(ctx context.Context, entityID string) ([]*entity.AuditEvent, error)
}

func (s *stubAuditService) Record(ctx context.Context, actor, action, entityType, entityID string, payload interface{}) {
}

func (s *stubAuditService) GetTrail(ctx context.Context, entityID string) ([]*entity.AuditEvent, error) {
	if s.trailFunc != nil {
		return s.trailFunc(ctx, entityID)
	}
	return nil, nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestServer(flowSvc service.FlowService) *Server {
	return NewServer(ServerConfig{}, flowSvc, &stubAuditService{}, nopLogger{})
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func TestHandlers_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{flow.ErrFlowNotFound, http.StatusNotFound},
		{flow.ErrDocumentNotFound, http.StatusNotFound},
		{flow.ErrUnknownSigners, http.StatusUnprocessableEntity},
		{flow.ErrNoSigners, http.StatusUnprocessableEntity},
		{flow.ErrWrongTurn, http.StatusConflict},
		{flow.ErrAlreadyCompleted, http.StatusConflict},
		{flow.ErrAlreadyCancelled, http.StatusConflict},
		{flow.ErrForbidden, http.StatusForbidden},
		{flow.ErrSigningFailed, http.StatusBadGateway},
		{flow.ErrSigningUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			server := newTestServer(&stubFlowService{
				advanceFunc: func(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error) {
					return nil, fmt.Errorf("advance: %w", tt.err)
				},
			})

			w := doJSON(t, server, http.MethodPost, "/api/v1/flows/flow-1/advance", AdvanceFlowRequest{
				SignerID: "alice",
				Artifact: base64.StdEncoding.EncodeToString([]byte("sig")),
			})

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeResponse(t, w)
			if resp.Success {
				t.Error("success = true on error response")
			}
			if tt.wantStatus == http.StatusInternalServerError && resp.Error != "internal error" {
				t.Errorf("internal errors must not leak details, got %q", resp.Error)
			}
		})
	}
}

func TestHandlers_CreateFlow(t *testing.T) {
	var gotInput service.CreateFlowInput
	server := newTestServer(&stubFlowService{
		createFunc: func(ctx context.Context, input service.CreateFlowInput) (*entity.SignatureFlow, error) {
			gotInput = input
			return &entity.SignatureFlow{ID: "flow-1", Status: entity.FlowStatusPending}, nil
		},
	})

	w := doJSON(t, server, http.MethodPost, "/api/v1/flows", CreateFlowRequest{
		DocumentID: "doc-1",
		Name:       "Lease agreement",
		CreatedBy:  "creator",
		Signers: []SignerRequest{
			{UserID: "alice", Order: 1},
			{UserID: "bob", Order: 2},
		},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	if len(gotInput.Signers) != 2 || gotInput.Signers[0].UserID != "alice" {
		t.Errorf("input signers = %+v", gotInput.Signers)
	}
	if !decodeResponse(t, w).Success {
		t.Error("success = false on created flow")
	}
}

func TestHandlers_CreateFlow_MissingFields(t *testing.T) {
	server := newTestServer(&stubFlowService{})

	w := doJSON(t, server, http.MethodPost, "/api/v1/flows", map[string]string{"name": "no document"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_AdvanceFlow_RejectsBadBase64(t *testing.T) {
	server := newTestServer(&stubFlowService{
		advanceFunc: func(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error) {
			t.Fatal("service must not be reached with an undecodable artifact")
			return nil, nil
		},
	})

	w := doJSON(t, server, http.MethodPost, "/api/v1/flows/flow-1/advance", AdvanceFlowRequest{
		SignerID: "alice",
		Artifact: "not base64!!!",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_AdvanceFlow_DecodesArtifact(t *testing.T) {
	var gotArtifact []byte
	server := newTestServer(&stubFlowService{
		advanceFunc: func(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error) {
			gotArtifact = artifact
			return &entity.SignatureFlow{ID: flowID}, nil
		},
	})

	w := doJSON(t, server, http.MethodPost, "/api/v1/flows/flow-1/advance", AdvanceFlowRequest{
		SignerID:  "alice",
		Artifact:  base64.StdEncoding.EncodeToString([]byte("raw-signature")),
		Extension: "pdf",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if string(gotArtifact) != "raw-signature" {
		t.Errorf("artifact = %q, want raw bytes", gotArtifact)
	}
}

func TestHandlers_RecordSigned(t *testing.T) {
	server := newTestServer(&stubFlowService{
		recordSignedFunc: func(ctx context.Context, flowID, signerID string) (*entity.SignatureFlow, error) {
			if flowID != "flow-1" || signerID != "alice" {
				t.Errorf("args = %s/%s", flowID, signerID)
			}
			return &entity.SignatureFlow{ID: flowID}, nil
		},
	})

	w := doJSON(t, server, http.MethodPost, "/api/v1/flows/flow-1/record-signed", RecordSignedRequest{SignerID: "alice"})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandlers_ListFlows_ParsesQuery(t *testing.T) {
	var gotFilter port.FlowFilter
	server := newTestServer(&stubFlowService{
		listFunc: func(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error) {
			gotFilter = filter
			return &port.FlowPage{Total: 0, StatusCounts: map[string]int64{}}, nil
		},
	})

	w := doJSON(t, server, http.MethodGet,
		"/api/v1/flows?document_id=doc-1&document_type_id=contract&status=PENDING&signer_id=alice&from=2026-01-01T00:00:00Z&page=2&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if gotFilter.DocumentID != "doc-1" || gotFilter.Status != "PENDING" || gotFilter.SignerID != "alice" {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotFilter.DocumentTypeID != "contract" {
		t.Errorf("document type = %q, want contract", gotFilter.DocumentTypeID)
	}
	if gotFilter.From == nil || gotFilter.From.Year() != 2026 {
		t.Errorf("from = %v, want parsed RFC3339", gotFilter.From)
	}
	if gotFilter.Page != 2 || gotFilter.Limit != 5 {
		t.Errorf("pagination = %d/%d, want 2/5", gotFilter.Page, gotFilter.Limit)
	}
}

func TestHandlers_ListFlows_RejectsBadTimestamp(t *testing.T) {
	server := newTestServer(&stubFlowService{
		listFunc: func(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error) {
			return &port.FlowPage{}, nil
		},
	})

	w := doJSON(t, server, http.MethodGet, "/api/v1/flows?from=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_GetPendingFlows(t *testing.T) {
	server := newTestServer(&stubFlowService{
		pendingFunc: func(ctx context.Context, userID string) ([]*entity.SignatureFlow, error) {
			if userID != "alice" {
				t.Errorf("userID = %s, want alice", userID)
			}
			return []*entity.SignatureFlow{{ID: "flow-1"}}, nil
		},
	})

	w := doJSON(t, server, http.MethodGet, "/api/v1/users/alice/pending-flows", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandlers_HealthCheck(t *testing.T) {
	server := newTestServer(&stubFlowService{})

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !decodeResponse(t, w).Success {
		t.Error("health check not successful")
	}
}
