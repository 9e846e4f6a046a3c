package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"

	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
	"github.com/roach88/beacon/internal/queue"
)

// evaluate checks every assertion and returns one message per failure.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.check(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func (h *Harness) check(ctx context.Context, a Assertion) error {
	e := h.engine
	switch a.Type {
	case AssertSends:
		return expectCount(a.Count, h.sender.Sends())
	case AssertProbes:
		return expectCount(a.Count, h.sender.Probes())
	case AssertPending:
		return expectCount(a.Count, e.PendingLen())
	case AssertInFlight:
		return expectCount(a.Count, e.InFlightLen())
	case AssertPersisted:
		n, err := h.persisted(ctx)
		if err != nil {
			return err
		}
		return expectCount(a.Count, n)
	case AssertState:
		return expectValue(a.Value, e.State().String())
	case AssertAvailable:
		return expectValue(a.Value, strconv.FormatBool(e.ServerAvailable()))
	case AssertIDValue:
		t, _ := lookupID(a.ID)
		return expectValue(a.Value, e.GetID(t))
	case AssertBatchTypes:
		bodies := h.sender.Bodies()
		if a.Batch >= len(bodies) {
			return fmt.Errorf("batch %d not sent, %d batches in total", a.Batch, len(bodies))
		}
		got, err := batchTypes(bodies[a.Batch])
		if err != nil {
			return err
		}
		if !slices.Equal(a.Types, got) {
			return fmt.Errorf("expected types %v, got %v", a.Types, got)
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type")
}

// persisted counts the records in the stored queue.
func (h *Harness) persisted(ctx context.Context) (int, error) {
	data, err := h.store.ReadBlob(ctx, queue.DefaultKey)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	records, err := queue.Decode(data, ident.NewSimulated(h.scenario.Device.info()))
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func batchTypes(body string) ([]string, error) {
	var records []struct {
		Event map[string]any `json:"event"`
	}
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	types := make([]string, len(records))
	for i, r := range records {
		types[i], _ = r.Event[event.TypeKey].(string)
	}
	return types, nil
}

func expectCount(want, got int) error {
	if want != got {
		return fmt.Errorf("expected %d, got %d", want, got)
	}
	return nil
}

func expectValue(want, got string) error {
	if want != got {
		return fmt.Errorf("expected %q, got %q", want, got)
	}
	return nil
}
