package signing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/flow"
)

func TestClient_Sign(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		detail  string
	}{
		{
			name: "accepted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantErr: nil,
		},
		{
			name: "backend rejection with detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "artifact malformed"})
			},
			wantErr: flow.ErrSigningFailed,
			detail:  "artifact malformed",
		},
		{
			name: "backend rejection without detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
			wantErr: flow.ErrSigningFailed,
		},
		{
			name: "backend outage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: flow.ErrSigningUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
			err := client.Sign(context.Background(), port.SignRequest{
				DocumentID: "doc-1",
				SignerID:   "alice",
				Artifact:   []byte("sig"),
				Extension:  "pdf",
			})

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Sign() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Sign() error = %v, want %v", err, tt.wantErr)
			}
			if tt.detail != "" && !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q does not carry backend detail %q", err, tt.detail)
			}
		})
	}
}

func TestClient_Sign_SendsPayloadAndAuth(t *testing.T) {
	var gotAuth string
	var gotPayload signPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/sign" {
			t.Errorf("path = %s, want /v1/sign", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, zap.NewNop())
	err := client.Sign(context.Background(), port.SignRequest{
		DocumentID: "doc-1",
		SignerID:   "alice",
		Artifact:   []byte("sig"),
		Extension:  "pdf",
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotPayload.DocumentID != "doc-1" || gotPayload.SignerID != "alice" || gotPayload.Extension != "pdf" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestClient_Sign_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	err := client.Sign(context.Background(), port.SignRequest{DocumentID: "doc-1", SignerID: "alice"})
	if !errors.Is(err, flow.ErrSigningUnavailable) {
		t.Errorf("Sign() error = %v, want ErrSigningUnavailable", err)
	}
}
