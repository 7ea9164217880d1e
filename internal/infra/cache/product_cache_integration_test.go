//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"marketplace/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisProductCache_RoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := NewRedisProductCache(fmt.Sprintf("redis://%s:%s/0", host, port.Port()), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	p := model.Product{ID: 3, Name: "mug", Price: 1200, Stock: 4, IsActive: true}
	require.NoError(t, c.Set(ctx, p))

	got, ok, err := c.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mug", got.Name)
	assert.Equal(t, int64(4), got.Stock)

	require.NoError(t, c.Invalidate(ctx, 3))
	_, ok, err = c.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
