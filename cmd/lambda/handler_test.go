package main

import (
	"context"
	"encoding/json"
	"testing"

	"hlsfn/internal/models"
	"hlsfn/internal/pipeline"
)

type recordingRunner struct{ payload string }

func (r *recordingRunner) Run(_ context.Context, payload string) pipeline.Result {
	r.payload = payload
	if payload == "" {
		return pipeline.Result{RunID: "r", ErrorCode: "INVALID_PAYLOAD", Error: "empty payload", HLSURLs: []models.ArtifactURL{}}
	}
	return pipeline.Result{RunID: "r", FileID: "abc123", HLSURLs: []models.ArtifactURL{}}
}

func TestHandlerPayloadForms(t *testing.T) {
	tests := []struct {
		name  string
		event string
		want  string
	}{
		{"object", `{"fileId":"abc123"}`, `{"fileId":"abc123"}`},
		{"string", `"{\"fileId\":\"abc123\"}"`, `{"fileId":"abc123"}`},
		{"padded object", "  {\"fileId\":\"abc123\"}\n", `{"fileId":"abc123"}`},
		{"null", `null`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRunner{}
			res, err := NewHandler(r)(context.Background(), json.RawMessage(tt.event))
			if err != nil {
				t.Fatalf("handler must not return errors, got %v", err)
			}
			if r.payload != tt.want {
				t.Errorf("expected payload %q, got %q", tt.want, r.payload)
			}
			if res.RunID != "r" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	}
}

func TestHandlerFailureIsInResult(t *testing.T) {
	res, err := NewHandler(&recordingRunner{})(context.Background(), json.RawMessage(`""`))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.ErrorCode != "INVALID_PAYLOAD" {
		t.Errorf("expected INVALID_PAYLOAD in result, got %+v", res)
	}
}
