package main

import (
	"bytes"
	"context"
	"encoding/json"

	"hlsfn/internal/pipeline"
)

// Handler is the lambda entrypoint. Failures are carried in the Result, so
// the returned error is always nil and the invocation is not retried.
type Handler func(ctx context.Context, event json.RawMessage) (pipeline.Result, error)

type runner interface {
	Run(ctx context.Context, payload string) pipeline.Result
}

func NewHandler(p runner) Handler {
	return func(ctx context.Context, event json.RawMessage) (pipeline.Result, error) {
		return p.Run(ctx, payloadText(event)), nil
	}
}

// payloadText accepts the payload either as a JSON object or as a JSON
// string holding the payload text, as HTTP-triggered invocations send it.
func payloadText(event json.RawMessage) string {
	trimmed := bytes.TrimSpace(event)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
