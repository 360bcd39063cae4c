package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValuesRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithUsername(context.Background(), "nurse-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.5.0")
	ctx = WithTime(ctx, at)

	assert.Equal(t, "nurse-1", Username(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.5.0", UserAgent(ctx))
	assert.Equal(t, at, Now(ctx))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Username(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Equal(t, time.UTC, Now(ctx).Location())
}
