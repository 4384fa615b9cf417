package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceRoundTrip(t *testing.T) {
	trace := &TraceContext{TraceID: "t-1", SpanID: "s-1", RequestID: "r-1"}
	ctx := WithTrace(context.Background(), trace)

	assert.Equal(t, trace, GetTrace(ctx))
	assert.Equal(t, "r-1", RequestID(ctx))
}

func TestTraceAbsent(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, GetTrace(ctx))
	assert.Equal(t, "", RequestID(ctx))
}
