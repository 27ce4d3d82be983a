package worker_test

import (
	"context"
	"fmt"
	"log"

	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/internal/taskqueue"
	"github.com/petrijr/packflow/pkg/api"
	"github.com/petrijr/packflow/pkg/worker"
)

// ExampleWorker enqueues a SKU creation and processes it.
func ExampleWorker() {
	ctx := context.Background()
	eng := engine.NewInMemoryEngine()
	w := worker.New(eng, taskqueue.NewInMemoryQueue())

	engineer := api.Actor{Role: api.RoleEngineering, Name: "engineer"}
	_, err := w.Enqueue(ctx, api.FlowSku, "create", engineer, api.CreateSkuRequest{
		Draft: api.SkuDraft{SkuCode: "SKU-48V", SkuName: "48V pack", CellsPerModule: 12},
	})
	if err != nil {
		log.Fatal(err)
	}

	if _, err := w.ProcessOne(ctx); err != nil {
		log.Fatal(err)
	}

	skus, _ := eng.ListSkus(ctx)
	fmt.Println(skus[0].Draft.SkuCode, skus[0].State)
	// Output: SKU-48V Draft
}
