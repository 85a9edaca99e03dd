package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/pavelanni/coursecore/internal/model"
)

// fakeScoper keeps sibling sets in memory. One mutex serializes scopes the
// way a storage transaction would.
type fakeScoper struct {
	mu     sync.Mutex
	sets   map[Scope]map[string]int
	failOn string
}

func newFakeScoper() *fakeScoper {
	return &fakeScoper{sets: make(map[Scope]map[string]int)}
}

type fakeTx struct {
	scoper *fakeScoper
	set    map[string]int
}

func (f *fakeScoper) WithinScope(_ context.Context, scope Scope, fn func(tx *fakeTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := make(map[string]int, len(f.sets[scope]))
	for id, idx := range f.sets[scope] {
		work[id] = idx
	}
	if err := fn(&fakeTx{scoper: f, set: work}); err != nil {
		return err
	}
	f.sets[scope] = work
	return nil
}

func (tx *fakeTx) Siblings(_ context.Context) ([]Sibling, error) {
	out := make([]Sibling, 0, len(tx.set))
	for id, idx := range tx.set {
		out = append(out, Sibling{ID: id, Index: idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (tx *fakeTx) Assign(_ context.Context, indices map[string]int) error {
	for id, idx := range indices {
		tx.set[id] = idx
	}
	seen := make(map[int]string)
	for id, idx := range tx.set {
		if other, ok := seen[idx]; ok {
			return fmt.Errorf("%w: %s and %s share index %d", model.ErrConflict, id, other, idx)
		}
		seen[idx] = id
	}
	return nil
}

func (tx *fakeTx) insert(id string, index int) error {
	if tx.scoper.failOn == id {
		return errors.New("insert failed")
	}
	for other, idx := range tx.set {
		if idx == index {
			return fmt.Errorf("%w: %s already at %d", model.ErrConflict, other, idx)
		}
	}
	tx.set[id] = index
	return nil
}

func (f *fakeScoper) indices(scope Scope) map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.sets[scope]))
	for id, idx := range f.sets[scope] {
		out[id] = idx
	}
	return out
}

func createN(t *testing.T, m *Manager[*fakeTx], scope Scope, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := m.Create(context.Background(), scope, 0, func(tx *fakeTx, idx int) error {
			return tx.insert(id, idx)
		}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
}

func assertDense(t *testing.T, got map[string]int) {
	t.Helper()
	seen := make(map[int]bool, len(got))
	for id, idx := range got {
		if idx < 1 || idx > len(got) {
			t.Errorf("%s has index %d outside 1..%d", id, idx, len(got))
		}
		if seen[idx] {
			t.Errorf("index %d assigned twice", idx)
		}
		seen[idx] = true
	}
}

func TestManagerCreateAppends(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := Chapters("m1")

	createN(t, m, scope, "a", "b", "c", "d", "e")

	got := store.indices(scope)
	if len(got) != 5 {
		t.Fatalf("expected 5 siblings, got %d", len(got))
	}
	assertDense(t, got)
	if got["a"] != 1 || got["e"] != 5 {
		t.Errorf("expected creation order, got %v", got)
	}
}

func TestManagerCreateConcurrent(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := ExamQuestions("e1")

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := m.Create(context.Background(), scope, 0, func(tx *fakeTx, idx int) error {
				return tx.insert(id, idx)
			})
			errs <- err
		}(fmt.Sprintf("q%02d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Create: %v", err)
		}
	}

	got := store.indices(scope)
	if len(got) != n {
		t.Fatalf("expected %d siblings, got %d", n, len(got))
	}
	assertDense(t, got)
}

func TestManagerCreateExplicit(t *testing.T) {
	ctx := context.Background()
	scope := Chapters("m1")

	tests := []struct {
		name     string
		existing []string
		explicit int
		wantIdx  int
		wantErr  error
	}{
		{"first must be 1", nil, 1, 1, nil},
		{"first cannot be 2", nil, 2, 0, model.ErrInvalidRange},
		{"append position", []string{"a", "b"}, 3, 3, nil},
		{"taken index", []string{"a", "b"}, 2, 0, model.ErrConflict},
		{"beyond append", []string{"a", "b"}, 5, 0, model.ErrInvalidRange},
		{"negative", []string{"a"}, -1, 0, model.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeScoper()
			m := NewManager[*fakeTx](store)
			createN(t, m, scope, tt.existing...)

			idx, err := m.Create(ctx, scope, tt.explicit, func(tx *fakeTx, idx int) error {
				return tx.insert("new", idx)
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if _, ok := store.indices(scope)["new"]; ok {
					t.Error("rejected create must not persist")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if idx != tt.wantIdx {
				t.Errorf("assigned %d, want %d", idx, tt.wantIdx)
			}
		})
	}
}

func TestManagerCreateInsertFailureRollsBack(t *testing.T) {
	store := newFakeScoper()
	store.failOn = "bad"
	m := NewManager[*fakeTx](store)
	scope := Chapters("m1")
	createN(t, m, scope, "a")

	_, err := m.Create(context.Background(), scope, 0, func(tx *fakeTx, idx int) error {
		return tx.insert("bad", idx)
	})
	if err == nil {
		t.Fatal("expected insert error")
	}
	if got := store.indices(scope); len(got) != 1 {
		t.Errorf("expected set unchanged, got %v", got)
	}
}

func TestManagerDeleteReorders(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := Chapters("m1")
	createN(t, m, scope, "one", "two", "three")

	err := m.Delete(context.Background(), scope, func(tx *fakeTx) error {
		delete(tx.set, "two")
		return nil
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := store.indices(scope)
	if len(got) != 2 || got["one"] != 1 || got["three"] != 2 {
		t.Errorf("expected [one:1 three:2], got %v", got)
	}
}

func TestManagerDeleteAtEveryPosition(t *testing.T) {
	const n = 6
	for k := 1; k <= n; k++ {
		t.Run(fmt.Sprintf("delete %d of %d", k, n), func(t *testing.T) {
			store := newFakeScoper()
			m := NewManager[*fakeTx](store)
			scope := PretestQuestions("p1")
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("s%d", i+1)
			}
			createN(t, m, scope, ids...)

			victim := ids[k-1]
			if err := m.Delete(context.Background(), scope, func(tx *fakeTx) error {
				delete(tx.set, victim)
				return nil
			}); err != nil {
				t.Fatalf("Delete: %v", err)
			}

			got := store.indices(scope)
			assertDense(t, got)
			want := 1
			for _, id := range ids {
				if id == victim {
					continue
				}
				if got[id] != want {
					t.Errorf("%s: got %d, want %d", id, got[id], want)
				}
				want++
			}
		})
	}
}

func TestManagerDeleteOnlySibling(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := Chapters("solo")
	createN(t, m, scope, "only")

	if err := m.Delete(context.Background(), scope, func(tx *fakeTx) error {
		delete(tx.set, "only")
		return nil
	}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := store.indices(scope); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}

	idx, err := m.Create(context.Background(), scope, 0, func(tx *fakeTx, idx int) error {
		return tx.insert("again", idx)
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected next create to start at 1, got %d", idx)
	}
}

func TestManagerMoveSwaps(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := Chapters("m1")
	createN(t, m, scope, "a", "b", "c")

	updated := false
	err := m.Move(context.Background(), scope, "c", 1, func(tx *fakeTx) error {
		updated = true
		return nil
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !updated {
		t.Error("expected update callback to run")
	}
	got := store.indices(scope)
	if got["c"] != 1 || got["a"] != 3 || got["b"] != 2 {
		t.Errorf("expected single swap, got %v", got)
	}
}

func TestManagerMoveOutOfRange(t *testing.T) {
	store := newFakeScoper()
	m := NewManager[*fakeTx](store)
	scope := Chapters("m1")
	createN(t, m, scope, "a", "b")

	err := m.Move(context.Background(), scope, "a", 3, nil)
	if !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	got := store.indices(scope)
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("expected untouched set, got %v", got)
	}
}

func TestManagerReorderRepairsGaps(t *testing.T) {
	store := newFakeScoper()
	scope := ExamQuestions("e1")
	store.sets[scope] = map[string]int{"x": 2, "y": 5, "z": 9}
	m := NewManager[*fakeTx](store)

	if err := m.Reorder(context.Background(), scope); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	got := store.indices(scope)
	if got["x"] != 1 || got["y"] != 2 || got["z"] != 3 {
		t.Errorf("expected x,y,z -> 1,2,3, got %v", got)
	}
}
