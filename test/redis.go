package test

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const RedisPort = "6379/tcp"

// StartRedisContainer starts a disposable Redis server.
func StartRedisContainer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{RedisPort},
				WaitingFor: wait.ForAll(
					wait.ForLog("Ready to accept connections"),
					wait.ForListeningPort(nat.Port(RedisPort)),
				),
			},
			Started: true,
		})
}

// RedisURL returns a redis:// URL for a container started with StartRedisContainer.
func RedisURL(ctx context.Context, container testcontainers.Container) (string, error) {
	endpoint, err := container.PortEndpoint(ctx, nat.Port(RedisPort), "redis")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/0", endpoint), nil
}
