package api

import "testing"

func TestRequestValidation(t *testing.T) {
	stores := Actor{Role: RoleStores}
	zero := 0
	neg := -1

	cases := []struct {
		name string
		req  interface{ Validate() error }
		want string // "" means valid
	}{
		{"instance ok", InstanceRequest{Actor: stores, InstanceID: "X"}, ""},
		{"missing role", InstanceRequest{InstanceID: "X"}, "Actor role is required"},
		{"unknown role", InstanceRequest{Actor: Actor{Role: "JANITOR"}, InstanceID: "X"}, `Unknown role "JANITOR"`},
		{"blank id", ReasonRequest{Actor: stores, InstanceID: "  "}, "Instance ID is required"},
		{"sku needs code", CreateSkuRequest{Actor: stores, Draft: SkuDraft{SkuName: "n", CellsPerModule: 1}}, "SKU Code is required"},
		{"sku cells", CreateSkuRequest{Actor: stores, Draft: SkuDraft{SkuCode: "c", SkuName: "n"}}, "Cells per module must be positive"},
		{"po quantity", CreatePurchaseOrderRequest{Actor: stores, Draft: PurchaseOrderDraft{PONumber: "P", SupplierName: "S"}}, "Quantity must be positive"},
		{"amend without draft", AmendPurchaseOrderRequest{Actor: stores, InstanceID: "PO"}, ""},
		{"amend bad draft", AmendPurchaseOrderRequest{Actor: stores, InstanceID: "PO", Draft: &PurchaseOrderDraft{}}, "PO Number is required"},
		{"receipt grn", CreateReceiptRequest{Actor: stores, Draft: ReceiptDraft{SupplierName: "S", QuantityReceived: 1}}, "GRN Number is required"},
		{"receipt qty", CreateReceiptRequest{Actor: stores, Draft: ReceiptDraft{GRNNumber: "G", SupplierName: "S"}}, "Quantity received must be positive"},
		{"blank serial", SerializeReceiptRequest{Actor: stores, InstanceID: "R", Serials: []string{"A", " "}}, "Serial at position 2 is empty"},
		{"qc decision", CompleteQcRequest{Actor: stores, InstanceID: "R", Decision: "MAYBE"}, "QC decision must be PASS or FAIL"},
		{"qc item status", CompleteQcRequest{Actor: stores, InstanceID: "R", Decision: QcPass,
			ItemResults: []ItemResult{{SerialNumber: "C-1", Status: ItemPendingQC}}}, `Invalid QC status "PENDING_QC" for C-1`},
		{"qc pass quantity zero", CompleteQcRequest{Actor: stores, InstanceID: "R", Decision: QcFail, PassQuantity: &zero}, ""},
		{"qc pass quantity negative", CompleteQcRequest{Actor: stores, InstanceID: "R", Decision: QcPass, PassQuantity: &neg}, "Pass quantity cannot be negative"},
		{"batch name", CreateBatchRequest{Actor: stores, Draft: BatchDraft{SkuCode: "S", PlannedQuantity: 1}}, "Batch Name is required"},
		{"batch update negative", UpdateBatchDraftRequest{Actor: stores, InstanceID: "B", PlannedQuantity: -2}, "Planned quantity must be positive"},
		{"cells empty", CellsRequest{Actor: stores, InstanceID: "B"}, "At least one cell serial is required"},
		{"cells blank", CellsRequest{Actor: stores, InstanceID: "B", Serials: []string{""}}, "Cell serial at position 1 is empty"},
		{"module batch", CreateModuleRequest{Actor: stores}, "Batch ID is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %q, got nil", tc.want)
			}
			if CodeOf(err) != CodeBadRequest {
				t.Fatalf("expected BAD_REQUEST, got %s", CodeOf(err))
			}
			if e := err.(*Error); e.Message != tc.want {
				t.Fatalf("message = %q, want %q", e.Message, tc.want)
			}
		})
	}
}

func TestParseFlow(t *testing.T) {
	for in, want := range map[string]FlowID{
		"FLOW-003":    FlowReceipt,
		"flow-002":    FlowBatch,
		"inbound":     FlowReceipt,
		" Module ":    FlowModule,
		"procurement": FlowPurchaseOrder,
	} {
		got, ok := ParseFlow(in)
		if !ok || got != want {
			t.Fatalf("ParseFlow(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseFlow("FLOW-005"); ok {
		t.Fatal("FLOW-005 is not hosted")
	}
}

func TestActorLabel(t *testing.T) {
	if got := (Actor{Role: RoleOperator}).Label(); got != "OPERATOR" {
		t.Fatalf("Label = %q", got)
	}
	if got := (Actor{Role: RoleOperator, Name: "jo"}).Label(); got != "jo" {
		t.Fatalf("Label = %q", got)
	}
}
