package api_test

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/petrijr/packflow/pkg/api"
)

// ExampleDecodeInstance shows how a stored instance is decoded back into
// its concrete type using the flowId discriminator.
func ExampleDecodeInstance() {
	data := []byte(`{"flowId":"FLOW-002","instanceId":"B-02","revision":4,"state":"InProgress",
		"draft":{"batchName":"Line 1","skuCode":"BP-LFP-48V-2.5K","plannedQuantity":3,"allocatedInventoryIds":["CELL-LFP-0037"]}}`)

	inst, err := api.DecodeInstance(data)
	if err != nil {
		log.Fatal(err)
	}

	switch v := inst.(type) {
	case *api.BatchInstance:
		fmt.Println(v.InstanceID, v.State, v.Draft.SkuCode, len(v.Draft.AllocatedCells))
	default:
		fmt.Printf("unexpected %T\n", v)
	}
	// Output: B-02 InProgress BP-LFP-48V-2.5K 1
}

// ExampleFail shows the error envelope returned at the HTTP boundary.
func ExampleFail() {
	resp := api.Fail(api.Forbidden("Requires QA Role"))
	out, _ := json.Marshal(resp)
	fmt.Println(string(out))
	// Output: {"ok":false,"error":{"code":"FORBIDDEN","message":"Requires QA Role"}}
}
