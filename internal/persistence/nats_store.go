package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/petrijr/packflow/pkg/api"
)

// NATSStore is a FlowStore backed by a JetStream key-value bucket. Keys are
// instance ids. The store version is the sequence of the bucket's backing
// stream, which advances by one on every put and delete.
type NATSStore struct {
	kv jetstream.KeyValue
}

var _ FlowStore = (*NATSStore)(nil)

// NewNATSStore opens the bucket, creating it when it does not exist yet.
// bucket defaults to "packflow_instances".
func NewNATSStore(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSStore, error) {
	if bucket == "" {
		bucket = "packflow_instances"
	}
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return &NATSStore{kv: kv}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "packflow flow instances",
		History:     1,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// Lost a creation race with another process.
		kv, err = js.KeyValue(ctx, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("nats: open bucket %s: %w", bucket, err)
	}
	return &NATSStore{kv: kv}, nil
}

func (s *NATSStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	entry, err := s.kv.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeInstance(entry.Value())
}

func (s *NATSStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var out []api.Instance
	for key := range lister.Keys() {
		inst, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrInstanceNotFound) {
				continue
			}
			return nil, err
		}
		if matchesFlow(flow, inst) {
			out = append(out, inst)
		}
	}
	sortInstances(out)
	return out, nil
}

func (s *NATSStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	data, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m := inst.Meta()

	if m.Revision == 1 {
		_, err := s.kv.Create(ctx, m.InstanceID, data)
		if isKVConflict(err) {
			stored, serr := s.storedRevision(ctx, m.InstanceID)
			if serr != nil {
				return serr
			}
			return conflict(m.InstanceID, stored, m.Revision)
		}
		return err
	}

	entry, err := s.kv.Get(ctx, m.InstanceID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return conflict(m.InstanceID, 0, m.Revision)
		}
		return err
	}
	stored, err := revisionOf(entry.Value())
	if err != nil {
		return err
	}
	if err := checkRevision(m.InstanceID, stored, m.Revision); err != nil {
		return err
	}
	if _, err := s.kv.Update(ctx, m.InstanceID, data, entry.Revision()); err != nil {
		if isKVConflict(err) {
			// Someone wrote between our read and our update.
			return conflict(m.InstanceID, stored+1, m.Revision)
		}
		return err
	}
	return nil
}

func (s *NATSStore) Delete(ctx context.Context, instanceID string) error {
	entry, err := s.kv.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrInstanceNotFound
		}
		return err
	}
	return s.kv.Delete(ctx, instanceID, jetstream.LastRevision(entry.Revision()))
}

func (s *NATSStore) Version(ctx context.Context) (api.StoreVersion, error) {
	status, err := s.kv.Status(ctx)
	if err != nil {
		return api.StoreVersion{}, err
	}
	bs, ok := status.(*jetstream.KeyValueBucketStatus)
	if !ok || bs.StreamInfo() == nil {
		return api.StoreVersion{}, fmt.Errorf("nats: unexpected bucket status %T", status)
	}
	state := bs.StreamInfo().State
	v := api.StoreVersion{Version: int64(state.LastSeq)}
	if state.LastSeq > 0 {
		v.UpdatedAt = state.LastTime.UTC()
	}
	return v, nil
}

func (s *NATSStore) storedRevision(ctx context.Context, instanceID string) (int64, error) {
	entry, err := s.kv.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return revisionOf(entry.Value())
}

// isKVConflict matches both "key exists" on Create and "wrong last
// sequence" on Update; JetStream reports them with the same API code.
func isKVConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
