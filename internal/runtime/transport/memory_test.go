package transport

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	"github.com/drblury/qbroker/internal/runtime/metadata"
)

func TestMemoryClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	for _, body := range []string{"a", "b", "c"} {
		_, err := c.Send(ctx, "q", body, metadata.New("k", body))
		require.NoError(t, err)
	}

	batch, err := c.Receive(ctx, ReceiveRequest{QueueURL: "q", MaxMessages: 2})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].Body)
	assert.Equal(t, "b", batch[1].Body)
	assert.NotEmpty(t, batch[0].ReceiptHandle)
	assert.Equal(t, "a", batch[0].Attributes["k"])

	visible, inFlight := c.Len("q")
	assert.Equal(t, 1, visible)
	assert.Equal(t, 2, inFlight)

	require.NoError(t, c.Delete(ctx, "q", batch[0].ReceiptHandle))
	_, inFlight = c.Len("q")
	assert.Equal(t, 1, inFlight)
}

func TestMemoryClientDeleteUnknownHandle(t *testing.T) {
	err := NewMemoryClient().Delete(context.Background(), "q", "missing")

	var te *errspkg.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestMemoryClientRedeliver(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	_, _ = c.Send(ctx, "q", "a", nil)

	first, _ := c.Receive(ctx, ReceiveRequest{QueueURL: "q", MaxMessages: 10})
	require.Len(t, first, 1)
	assert.Equal(t, 1, c.Redeliver("q"))

	second, _ := c.Receive(ctx, ReceiveRequest{QueueURL: "q", MaxMessages: 10})
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].ReceiptHandle, second[0].ReceiptHandle)
	assert.Error(t, c.Delete(ctx, "q", first[0].ReceiptHandle), "stale receipt handles are rejected")
}

func TestMemoryClientEmptyQueue(t *testing.T) {
	batch, err := NewMemoryClient().Receive(context.Background(), ReceiveRequest{QueueURL: "q", MaxMessages: 10})
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMemoryClientCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryClient().Receive(ctx, ReceiveRequest{QueueURL: "q", MaxMessages: 1})
	assert.True(t, errspkg.IsTransportError(err))
}

func TestMemoryClientPeekDoesNotReceive(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	_, _ = c.Send(ctx, "q", "a", metadata.New("k", "v"))

	peeked := c.Peek("q")
	require.Len(t, peeked, 1)
	peeked[0].Attributes["k"] = "changed"

	visible, inFlight := c.Len("q")
	assert.Equal(t, 1, visible)
	assert.Zero(t, inFlight)
	assert.Equal(t, "v", c.Peek("q")[0].Attributes["k"])
}
