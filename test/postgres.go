package test

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresPort     = "5432/tcp"
	PostgresUser     = "dashboard"
	PostgresPassword = "dashboard"
	PostgresDatabase = "dashboard"
)

// StartPostgresContainer starts a disposable Postgres server.
func StartPostgresContainer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{PostgresPort},
				Env: map[string]string{
					"POSTGRES_USER":     PostgresUser,
					"POSTGRES_PASSWORD": PostgresPassword,
					"POSTGRES_DB":       PostgresDatabase,
				},
				WaitingFor: wait.ForAll(
					wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
					wait.ForListeningPort(nat.Port(PostgresPort)),
				),
			},
			Started: true,
		})
}

// PostgresURL returns the connection string for a container started with
// StartPostgresContainer.
func PostgresURL(ctx context.Context, container testcontainers.Container) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, nat.Port(PostgresPort))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		PostgresUser, PostgresPassword, host, port.Port(), PostgresDatabase), nil
}
