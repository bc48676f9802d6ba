package metering

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubMeterRepo struct {
	byID map[string]*Meter
}

func newStubMeterRepo(meters ...*Meter) *stubMeterRepo {
	repo := &stubMeterRepo{byID: make(map[string]*Meter)}
	for _, m := range meters {
		repo.byID[m.ID] = m
	}
	return repo
}

func (r *stubMeterRepo) Create(_ context.Context, m *Meter) error {
	r.byID[m.ID] = m
	return nil
}

func (r *stubMeterRepo) Get(_ context.Context, id string) (*Meter, error) {
	return r.byID[id], nil
}

func (r *stubMeterRepo) ListByUnit(_ context.Context, _ string) ([]Meter, error) {
	return nil, nil
}

func (r *stubMeterRepo) ListByBuilding(_ context.Context, _ string) ([]Meter, error) {
	return nil, nil
}

func (r *stubMeterRepo) FindPredecessor(_ context.Context, successorID string) (*Meter, error) {
	for _, m := range r.byID {
		if m.ReplacedBy == successorID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *stubMeterRepo) LinkSuccessor(_ context.Context, meterID, successorID string) error {
	m, ok := r.byID[meterID]
	if !ok {
		return ErrMeterNotFound
	}
	if m.ReplacedBy != "" {
		return ErrSuccessorAlreadySet
	}
	m.ReplacedBy = successorID
	return nil
}

func (r *stubMeterRepo) Delete(_ context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

func chainMeters() (*stubMeterRepo, *Meter, *Meter, *Meter) {
	oldest := &Meter{ID: "m-1", UnitID: "u-1", Number: "100-alt2", Kind: KindGas, ReplacedBy: "m-2"}
	middle := &Meter{ID: "m-2", UnitID: "u-1", Number: "100-alt1", Kind: KindGas, ReplacedBy: "m-3"}
	current := &Meter{ID: "m-3", UnitID: "u-1", Number: "100", Kind: KindGas}
	return newStubMeterRepo(oldest, middle, current), oldest, middle, current
}

func TestWalkForwardReachesCurrent(t *testing.T) {
	repo, oldest, _, current := chainMeters()

	chain, err := WalkForward(context.Background(), repo, oldest)
	if err != nil {
		t.Fatalf("walk forward: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 meters, got %d", len(chain))
	}
	if chain[2].ID != current.ID || chain[2].IsRetired() {
		t.Fatalf("chain must end at the current meter, got %+v", chain[2])
	}
}

func TestWalkLineageFromMiddle(t *testing.T) {
	repo, oldest, middle, current := chainMeters()

	chain, err := WalkLineage(context.Background(), repo, middle)
	if err != nil {
		t.Fatalf("walk lineage: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 meters, got %d", len(chain))
	}
	if chain[0].ID != oldest.ID || chain[2].ID != current.ID {
		t.Fatalf("expected oldest..current order, got %s..%s", chain[0].ID, chain[2].ID)
	}
}

func TestWalkForwardDetectsCycle(t *testing.T) {
	a := &Meter{ID: "m-a", UnitID: "u-1", Number: "1", Kind: KindGas, ReplacedBy: "m-b"}
	b := &Meter{ID: "m-b", UnitID: "u-1", Number: "2", Kind: KindGas, ReplacedBy: "m-a"}
	repo := newStubMeterRepo(a, b)

	if _, err := WalkForward(context.Background(), repo, a); !errors.Is(err, ErrLineageCycle) {
		t.Fatalf("expected ErrLineageCycle, got %v", err)
	}
}

func TestWalkForwardDanglingReference(t *testing.T) {
	a := &Meter{ID: "m-a", UnitID: "u-1", Number: "1", Kind: KindGas, ReplacedBy: "m-missing"}
	repo := newStubMeterRepo(a)

	if _, err := WalkForward(context.Background(), repo, a); !errors.Is(err, ErrMeterNotFound) {
		t.Fatalf("expected ErrMeterNotFound, got %v", err)
	}
}

func TestMeterValidateOwner(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		meter Meter
		want  error
	}{
		{"no owner", Meter{Number: "1", Kind: KindGas}, ErrNoOwner},
		{"both owners", Meter{Number: "1", Kind: KindGas, UnitID: "u", BuildingID: "b"}, ErrAmbiguousOwner},
		{"missing number", Meter{Kind: KindGas, UnitID: "u"}, ErrMissingMeterNumber},
		{"bad kind", Meter{Number: "1", Kind: "steam", UnitID: "u"}, ErrInvalidKind},
		{"ok", Meter{Number: "1", Kind: KindGas, UnitID: "u", CreatedAt: now}, nil},
	}
	for _, tc := range cases {
		if err := tc.meter.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
