// Package dispatch maps "<flow>.<operation>" names to engine handlers so
// that commands arriving as JSON (over HTTP or through the task queue) can
// be executed without knowing the concrete request types.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/petrijr/packflow/pkg/api"
)

// Handler decodes body into the operation's request, stamps the actor onto
// it and calls the engine. Delete returns a nil instance.
type Handler func(ctx context.Context, eng api.Engine, actor api.Actor, body []byte) (api.Instance, error)

type key struct {
	flow api.FlowID
	op   string
}

var registry = map[key]Handler{}

func register(flow api.FlowID, op string, h Handler) {
	k := key{flow, op}
	if _, dup := registry[k]; dup {
		panic(fmt.Sprintf("dispatch: %s.%s registered twice", flow.Name(), op))
	}
	registry[k] = h
}

// bind adapts a typed engine method. actor points at the request's Actor
// field so the caller's identity always wins over anything in the body.
func bind[R any, T api.Instance](actor func(*R) *api.Actor, call func(api.Engine, context.Context, R) (T, error)) Handler {
	return func(ctx context.Context, eng api.Engine, a api.Actor, body []byte) (api.Instance, error) {
		var req R
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		*actor(&req) = a
		inst, err := call(eng, ctx, req)
		if err != nil {
			return nil, err
		}
		return inst, nil
	}
}

func decode(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return api.BadRequest("Malformed request body: %v", err)
	}
	return nil
}

func deleteHandler(ctx context.Context, eng api.Engine, a api.Actor, body []byte) (api.Instance, error) {
	var req api.InstanceRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	req.Actor = a
	return nil, eng.Delete(ctx, req)
}

// Lookup returns the handler for op on flow.
func Lookup(flow api.FlowID, op string) (Handler, bool) {
	h, ok := registry[key{flow, op}]
	return h, ok
}

// Run executes op on flow. Unknown operations are BAD_REQUEST.
func Run(ctx context.Context, eng api.Engine, flow api.FlowID, op string, actor api.Actor, body []byte) (api.Instance, error) {
	h, ok := Lookup(flow, op)
	if !ok {
		return nil, api.BadRequest("Unknown operation %s.%s", flow.Name(), op)
	}
	return h(ctx, eng, actor, body)
}

// Operations lists the operation names of flow in sorted order.
func Operations(flow api.FlowID) []string {
	var out []string
	for k := range registry {
		if k.flow == flow {
			out = append(out, k.op)
		}
	}
	sort.Strings(out)
	return out
}
