package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/petrijr/packflow/pkg/api"
)

// encodeInstance produces the payload stored by every backend. It is the
// JSON form of the instance with flowId as discriminator.
func encodeInstance(inst api.Instance) ([]byte, error) {
	data, err := api.EncodeInstance(inst)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w", err)
	}
	return data, nil
}

func decodeInstance(data []byte) (api.Instance, error) {
	if len(data) == 0 {
		return nil, ErrInstanceNotFound
	}
	inst, err := api.DecodeInstance(data)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w", err)
	}
	return inst, nil
}

// revisionOf reads only the envelope revision of a stored payload.
func revisionOf(data []byte) (int64, error) {
	var env struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("persistence: read revision: %w", err)
	}
	return env.Revision, nil
}

func encodeEvent(ev api.FlowEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func decodeEvent(data []byte) (api.FlowEvent, error) {
	var ev api.FlowEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}
