package service

import (
	"context"
	"errors"
	"testing"

	"github.com/veridoc/signflow/internal/domain/entity"
)

type mockAuditRepo struct {
	createFunc func(ctx context.Context, event *entity.AuditEvent) error
	events     []*entity.AuditEvent
}

func (m *mockAuditRepo) Create(ctx context.Context, event *entity.AuditEvent) error {
	m.events = append(m.events, event)
	if m.createFunc != nil {
		return m.createFunc(ctx, event)
	}
	return nil
}

func (m *mockAuditRepo) GetByEntityID(ctx context.Context, entityID string) ([]*entity.AuditEvent, error) {
	var out []*entity.AuditEvent
	for _, e := range m.events {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAuditService_Record(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, &mockLogger{})

	svc.Record(context.Background(), "alice", entity.AuditActionFlowSigned,
		"signature_flow", "flow-1", map[string]int{"step": 1})

	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	e := repo.events[0]
	if e.ID == "" {
		t.Error("event ID not assigned")
	}
	if e.Actor != "alice" || e.Action != entity.AuditActionFlowSigned || e.EntityID != "flow-1" {
		t.Errorf("event = %+v", e)
	}
	if e.Payload != `{"step":1}` {
		t.Errorf("payload = %q", e.Payload)
	}
}

func TestAuditService_Record_WriteFailureIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{
		createFunc: func(ctx context.Context, event *entity.AuditEvent) error {
			return errors.New("table locked")
		},
	}
	svc := NewAuditService(repo, &mockLogger{})

	// must not panic; Record has no error to return
	svc.Record(context.Background(), "alice", entity.AuditActionFlowCancelled,
		"signature_flow", "flow-1", nil)
}

func TestAuditService_Record_UnencodablePayloadStillRecords(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, &mockLogger{})

	svc.Record(context.Background(), "alice", entity.AuditActionFlowCreated,
		"signature_flow", "flow-1", func() {})

	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	if repo.events[0].Payload != "" {
		t.Errorf("payload = %q, want empty for unencodable input", repo.events[0].Payload)
	}
}

func TestAuditService_GetTrail(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, &mockLogger{})

	svc.Record(context.Background(), "alice", entity.AuditActionFlowCreated, "signature_flow", "flow-1", nil)
	svc.Record(context.Background(), "bob", entity.AuditActionFlowSigned, "signature_flow", "flow-2", nil)

	trail, err := svc.GetTrail(context.Background(), "flow-1")
	if err != nil {
		t.Fatalf("GetTrail() error = %v", err)
	}
	if len(trail) != 1 || trail[0].Actor != "alice" {
		t.Errorf("trail = %+v, want only flow-1 events", trail)
	}
}
