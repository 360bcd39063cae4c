//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

// RedpandaContainer is a Kafka-compatible broker for the event suites.
type RedpandaContainer struct {
	Container testcontainers.Container
	Brokers   []string
}

func newRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := redpanda.Run(ctx, redpandaImage, redpanda.WithAutoCreateTopics())
	require.NoError(t, err, "start redpanda container")

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		require.NoError(t, err, "redpanda seed broker")
	}
	return &RedpandaContainer{Container: container, Brokers: []string{broker}}
}
