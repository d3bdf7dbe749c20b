package logging

import (
	"context"
	"testing"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetModel(ctx) != "" {
		t.Fatal("empty context must yield empty fields")
	}

	ctx = WithRequestID(ctx, "r")
	ctx = WithCorrelationID(ctx, "c")
	ctx = WithModel(ctx, "m")
	ctx = WithRoute(ctx, "x")

	tests := []struct {
		got, want string
	}{
		{GetRequestID(ctx), "r"},
		{GetCorrelationID(ctx), "c"},
		{GetModel(ctx), "m"},
		{GetRoute(ctx), "x"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	attrs := contextAttrs(ctx)
	if len(attrs) != 4 || attrs[0].Key != "request_id" || attrs[3].Key != "route" {
		t.Errorf("unexpected attrs %v", attrs)
	}
}
