package api

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecode_AllFlows(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	env := func(id string) Envelope {
		return Envelope{InstanceID: id, CreatedAt: at, UpdatedAt: at, Revision: 3}
	}
	insts := []Instance{
		&SkuInstance{Envelope: env("SKU-1"), State: SkuStateActive,
			Draft: SkuDraft{SkuCode: "BP-LFP-48V-2.5K", SkuName: "Pack", CellsPerModule: 12},
			Approved: &Stamp{By: "qa", At: at}},
		&PurchaseOrderInstance{Envelope: env("PO-1"), State: PoStateIssued,
			Draft: PurchaseOrderDraft{PONumber: "PO-001", SupplierName: "Cells Ltd", Quantity: 100}},
		&ReceiptInstance{Envelope: env("INB-1"), State: ReceiptStateDisposition,
			SerializedItems: []SerializedItem{{SerialNumber: "C-1", Status: ItemPassed}}},
		&BatchInstance{Envelope: env("B-1"), State: BatchStateApproved,
			Draft: BatchDraft{BatchName: "B", SkuCode: "X", PlannedQuantity: 1, AllocatedCells: []string{"C-1"}}},
		&ModuleInstance{Envelope: env("M-1"), State: ModuleStatePendingQA,
			Draft: ModuleDraft{BatchID: "B-1", CellSerials: []string{"C-1"}, ModuleSerial: "MOD-2025-01-001"}},
	}

	for _, inst := range insts {
		data, err := EncodeInstance(inst)
		if err != nil {
			t.Fatalf("encode %T: %v", inst, err)
		}
		if !strings.Contains(string(data), `"flowId":"`+string(inst.Flow())+`"`) {
			t.Fatalf("encoded %T lacks discriminator: %s", inst, data)
		}
		got, err := DecodeInstance(data)
		if err != nil {
			t.Fatalf("decode %T: %v", inst, err)
		}
		if got.Flow() != inst.Flow() || got.StateName() != inst.StateName() {
			t.Fatalf("round trip of %T gave %s/%s", inst, got.Flow(), got.StateName())
		}
		if got.Meta().InstanceID != inst.Meta().InstanceID || got.Meta().Revision != 3 {
			t.Fatalf("round trip of %T lost the envelope: %+v", inst, got.Meta())
		}
	}
}

func TestEncodeInstance_SetsFlowID(t *testing.T) {
	b := &BatchInstance{Envelope: Envelope{InstanceID: "B-1", Revision: 1}, State: BatchStateDraft}
	data, err := EncodeInstance(b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"flowId":"FLOW-002"`) {
		t.Fatalf("missing flow id: %s", data)
	}
}

func TestEncodeInstance_Nil(t *testing.T) {
	if _, err := EncodeInstance(nil); err == nil {
		t.Fatal("expected error for nil instance")
	}
}

func TestDecodeInstance_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"unknown flow":    `{"flowId":"FLOW-005","state":"Draft"}`,
		"missing flow":    `{"state":"Draft"}`,
		"undefined state": `{"flowId":"FLOW-006","instanceId":"M-1","state":"Assembled"}`,
		"wrong flow enum": `{"flowId":"FLOW-001","state":"Issued"}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeInstance([]byte(data)); err == nil {
				t.Fatalf("expected decode error for %s", data)
			}
		})
	}
}

func TestClone_SharesNoMemory(t *testing.T) {
	r := &ReceiptInstance{
		SerializedItems: []SerializedItem{{SerialNumber: "C-1", Status: ItemPendingQC}},
		QC:              &Stamp{By: "qa"},
	}
	c := r.Clone().(*ReceiptInstance)
	c.SerializedItems[0].Status = ItemPassed
	c.QC.By = "someone else"

	if r.SerializedItems[0].Status != ItemPendingQC || r.QC.By != "qa" {
		t.Fatalf("clone mutated the original: %+v", r)
	}

	m := &ModuleInstance{Draft: ModuleDraft{CellSerials: []string{"C-1"}}}
	mc := m.Clone().(*ModuleInstance)
	mc.Draft.CellSerials[0] = "X"
	if m.Draft.CellSerials[0] != "C-1" {
		t.Fatal("module clone shares cell serials")
	}
}
