// Package testutil starts shared test containers. Each container is started
// at most once per test binary; the testcontainers reaper removes it when
// the binary exits. Tests that need a container are skipped under -short
// and when Docker is unavailable.
package testutil

import (
	"context"
	"testing"
	"time"
)

// startTimeout is generous for CI environments.
const startTimeout = 3 * time.Minute

func startContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), startTimeout)
}

func skipIfShort(t *testing.T, name string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s container test in -short mode", name)
	}
}

func skipIfFailed(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s container unavailable: %v", name, err)
	}
}
