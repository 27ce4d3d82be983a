package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	natsOnce sync.Once
	natsURL  string
	natsErr  error
)

// GetNATSURL returns the client URL of a shared NATS server with JetStream
// enabled.
func GetNATSURL(t *testing.T) string {
	t.Helper()
	skipIfShort(t, "nats")
	natsOnce.Do(startNATS)
	skipIfFailed(t, "nats", natsErr)
	return natsURL
}

func startNATS() {
	ctx, cancel := startContext()
	defer cancel()

	natsC, err := testcontainers.Run(
		ctx, "nats:2",
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithCmd("-js"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		natsErr = err
		return
	}

	endpoint, err := natsC.Endpoint(ctx, "")
	if err != nil {
		natsErr = err
		return
	}
	natsURL = fmt.Sprintf("nats://%s", endpoint)
}
