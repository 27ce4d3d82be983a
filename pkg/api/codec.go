package api

import (
	"encoding/json"
	"fmt"
)

// EncodeInstance serializes an instance as JSON. The flowId field carries
// the discriminator used by DecodeInstance.
func EncodeInstance(inst Instance) ([]byte, error) {
	if inst == nil {
		return nil, fmt.Errorf("encode instance: nil instance")
	}
	inst.Meta().FlowID = inst.Flow()
	return json.Marshal(inst)
}

// DecodeInstance parses JSON produced by EncodeInstance into the concrete
// type named by its flowId. Unknown flow ids and undefined states are
// rejected.
func DecodeInstance(data []byte) (Instance, error) {
	var head struct {
		FlowID FlowID `json:"flowId"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}

	var (
		inst  Instance
		valid func() bool
	)
	switch head.FlowID {
	case FlowSku:
		v := &SkuInstance{}
		inst, valid = v, func() bool { return v.State.Valid() }
	case FlowPurchaseOrder:
		v := &PurchaseOrderInstance{}
		inst, valid = v, func() bool { return v.State.Valid() }
	case FlowReceipt:
		v := &ReceiptInstance{}
		inst, valid = v, func() bool { return v.State.Valid() }
	case FlowBatch:
		v := &BatchInstance{}
		inst, valid = v, func() bool { return v.State.Valid() }
	case FlowModule:
		v := &ModuleInstance{}
		inst, valid = v, func() bool { return v.State.Valid() }
	default:
		return nil, fmt.Errorf("decode instance: unknown flow id %q", head.FlowID)
	}

	if err := json.Unmarshal(data, inst); err != nil {
		return nil, fmt.Errorf("decode %s instance: %w", head.FlowID, err)
	}
	if !valid() {
		return nil, fmt.Errorf("decode %s instance %s: undefined state %q",
			head.FlowID, inst.Meta().InstanceID, inst.StateName())
	}
	return inst, nil
}
