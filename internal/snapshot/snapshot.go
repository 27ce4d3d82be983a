// Package snapshot exports the contents of a flow store as one JSON
// document, written to a local directory or an S3 bucket.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

// Format identifies the document layout.
const Format = "packflow.snapshot/v1"

// Snapshot is a point-in-time copy of every instance and its history.
// Instances are stored in their tagged wire form.
type Snapshot struct {
	Format       string                     `json:"format"`
	ExportedAt   time.Time                  `json:"exportedAt"`
	StoreVersion api.StoreVersion           `json:"storeVersion"`
	Instances    []json.RawMessage          `json:"instances"`
	History      map[string][]api.FlowEvent `json:"history,omitempty"`
}

// Capture reads the whole store. events may be nil to skip history.
func Capture(ctx context.Context, flows persistence.FlowStore, events persistence.EventStore, now time.Time) (*Snapshot, error) {
	// Read the version first so a concurrent write shows up as a newer
	// version than the one recorded, never an older one.
	v, err := flows.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: store version: %w", err)
	}
	all, err := flows.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}

	s := &Snapshot{
		Format:       Format,
		ExportedAt:   now.UTC(),
		StoreVersion: v,
		Instances:    make([]json.RawMessage, 0, len(all)),
	}
	for _, inst := range all {
		data, err := api.EncodeInstance(inst)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode %s: %w", inst.Meta().InstanceID, err)
		}
		s.Instances = append(s.Instances, data)

		if events == nil {
			continue
		}
		evs, err := events.ListEvents(ctx, inst.Meta().InstanceID)
		if err != nil {
			return nil, fmt.Errorf("snapshot: history %s: %w", inst.Meta().InstanceID, err)
		}
		if len(evs) > 0 {
			if s.History == nil {
				s.History = make(map[string][]api.FlowEvent)
			}
			s.History[inst.Meta().InstanceID] = evs
		}
	}
	return s, nil
}

// Decode returns the concrete instances of the snapshot.
func (s *Snapshot) Decode() ([]api.Instance, error) {
	out := make([]api.Instance, 0, len(s.Instances))
	for i, raw := range s.Instances {
		inst, err := api.DecodeInstance(raw)
		if err != nil {
			return nil, fmt.Errorf("snapshot: instance %d: %w", i, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

// Name is the object name used by sinks.
func (s *Snapshot) Name() string {
	return fmt.Sprintf("packflow-%s-v%d.json", s.ExportedAt.Format("20060102T150405Z"), s.StoreVersion.Version)
}

// Write encodes s as indented JSON.
func (s *Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Read decodes a snapshot and checks its format.
func Read(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s.Format != Format {
		return nil, fmt.Errorf("snapshot: unsupported format %q", s.Format)
	}
	return &s, nil
}

// Sink stores an encoded snapshot under name and returns its location.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Export captures the store and hands it to sink.
func Export(ctx context.Context, p persistence.Persistence, sink Sink, now time.Time) (string, *Snapshot, error) {
	s, err := Capture(ctx, p.Flows, p.Events, now)
	if err != nil {
		return "", nil, err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	loc, err := sink.Put(ctx, s.Name(), data)
	if err != nil {
		return "", nil, err
	}
	return loc, s, nil
}
