package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/test"
	"go.vocdoni.io/dvote/log"
)

var (
	testDB  *PostgresStorage
	testURL string
)

func TestMain(m *testing.M) {
	log.Init("debug", "stdout", nil)
	ctx := context.Background()
	container, err := test.StartPostgresContainer(ctx)
	if err != nil {
		// without docker only the pure tests run
		fmt.Printf("postgres container unavailable, skipping storage tests: %v\n", err)
		os.Exit(m.Run())
	}
	testURL, err = test.PostgresURL(ctx, container)
	if err != nil {
		panic(fmt.Sprintf("failed to get postgres endpoint: %v", err))
	}
	testDB, err = New(testURL)
	if err != nil {
		panic(fmt.Sprintf("failed to create postgres storage: %v", err))
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop postgres container: %v", err))
	}
	os.Exit(code)
}

// resetDB skips the test when no database is available and empties every
// table otherwise.
func resetDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
	if err := testDB.Reset(context.Background()); err != nil {
		t.Fatalf("reset database: %v", err)
	}
}
