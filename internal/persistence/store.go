package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

var (
	// ErrInstanceNotFound is returned when a flow instance is not found.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrVersionConflict is returned by Upsert when the stored revision is
	// not the one the caller loaded.
	ErrVersionConflict = errors.New("instance revision conflict")
)

// FlowStore persists flow instances of every flow type and keeps a global
// store version that increases on every successful write.
type FlowStore interface {
	Get(ctx context.Context, instanceID string) (api.Instance, error)
	// List returns instances of one flow type ordered by creation time, or
	// of all types when flow is "".
	List(ctx context.Context, flow api.FlowID) ([]api.Instance, error)
	// Upsert writes inst if the stored revision equals inst.Revision-1. A
	// Revision of 1 requires that no instance with the same id exists.
	Upsert(ctx context.Context, inst api.Instance) error
	Delete(ctx context.Context, instanceID string) error
	Version(ctx context.Context) (api.StoreVersion, error)
}

func checkInstance(inst api.Instance) error {
	if inst == nil {
		return errors.New("persistence: nil instance")
	}
	m := inst.Meta()
	if strings.TrimSpace(m.InstanceID) == "" {
		return errors.New("persistence: instance id is empty")
	}
	if m.Revision < 1 {
		return fmt.Errorf("persistence: instance %s has revision %d", m.InstanceID, m.Revision)
	}
	return nil
}

// checkRevision compares the stored revision (0 when absent) with the
// revision the caller wants to write.
func checkRevision(instanceID string, stored, next int64) error {
	if stored != next-1 {
		return conflict(instanceID, stored, next)
	}
	return nil
}

func conflict(instanceID string, stored, next int64) error {
	return fmt.Errorf("%w: %s stored at revision %d, write expects %d", ErrVersionConflict, instanceID, stored, next-1)
}

func writeTime(inst api.Instance) time.Time {
	if at := inst.Meta().UpdatedAt; !at.IsZero() {
		return at
	}
	return time.Now().UTC()
}

func matchesFlow(flow api.FlowID, inst api.Instance) bool {
	return flow == "" || inst.Flow() == flow
}

// sortInstances orders by creation time, then by id.
func sortInstances(list []api.Instance) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Meta(), list[j].Meta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.InstanceID < b.InstanceID
	})
}
