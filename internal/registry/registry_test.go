package registry

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"releasebot/internal/storage"
	logx "releasebot/pkg/logx"
)

type memStore struct {
	mu      sync.Mutex
	ids     []int64
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]int64(nil), m.ids...), nil
}

func (m *memStore) Save(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.ids = append([]int64(nil), ids...)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestOpenDedupes(t *testing.T) {
	r, err := Open(context.Background(), &memStore{ids: []int64{3, 1, 3}}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Snapshot(); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Fatalf("snapshot=%v", got)
	}
}

func TestOpenPropagatesLoadErrors(t *testing.T) {
	for _, sentinel := range []error{storage.ErrCorrupt, storage.ErrUnavailable} {
		_, err := Open(context.Background(), &memStore{loadErr: sentinel}, logx.Nop())
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v, got %v", sentinel, err)
		}
	}
}

func TestAddIsIdempotent(t *testing.T) {
	st := &memStore{}
	r, _ := Open(context.Background(), st, logx.Nop())
	ctx := context.Background()

	changed, err := r.Add(ctx, 10)
	if err != nil || !changed {
		t.Fatalf("first add changed=%v err=%v", changed, err)
	}
	changed, err = r.Add(ctx, 10)
	if err != nil || changed {
		t.Fatalf("second add changed=%v err=%v", changed, err)
	}
	if st.saves != 1 {
		t.Fatalf("saves=%d want 1", st.saves)
	}
	if r.Len() != 1 || !r.Contains(10) {
		t.Fatalf("unexpected state %v", r.Snapshot())
	}
}

func TestAddRollsBackOnPersistError(t *testing.T) {
	st := &memStore{ids: []int64{1}}
	r, _ := Open(context.Background(), st, logx.Nop())
	st.saveErr = storage.ErrUnavailable

	if _, err := r.Add(context.Background(), 2); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if r.Contains(2) {
		t.Fatal("id must not stay in memory after failed persist")
	}
}

func TestRemoveAll(t *testing.T) {
	st := &memStore{ids: []int64{1, 2, 3}}
	r, _ := Open(context.Background(), st, logx.Nop())

	n, err := r.RemoveAll(context.Background(), []int64{2, 99})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if !reflect.DeepEqual(st.ids, []int64{1, 3}) {
		t.Fatalf("persisted=%v", st.ids)
	}

	saves := st.saves
	n, _ = r.RemoveAll(context.Background(), []int64{42})
	if n != 0 || st.saves != saves {
		t.Fatalf("no-op remove wrote to store: n=%d saves=%d", n, st.saves)
	}
}

func TestRemoveAllRollsBack(t *testing.T) {
	st := &memStore{ids: []int64{1, 2}}
	r, _ := Open(context.Background(), st, logx.Nop())
	st.saveErr = errors.New("disk full")

	if _, err := r.RemoveAll(context.Background(), []int64{1}); err == nil {
		t.Fatal("expected error")
	}
	if !r.Contains(1) {
		t.Fatal("removed id must be restored after failed persist")
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	r, _ := Open(context.Background(), &memStore{ids: []int64{1}}, logx.Nop())
	snap := r.Snapshot()
	_, _ = r.Add(context.Background(), 2)
	if len(snap) != 1 {
		t.Fatalf("snapshot changed: %v", snap)
	}
}

// Registry {A,B,C}; B is pruned; after a restart the registry is {A,C}.
func TestPruneSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users_database.db")
	st := storage.NewFileStore(path, logx.Nop())
	if err := st.Save(ctx, []int64{100, 200, 300}); err != nil {
		t.Fatal(err)
	}
	r, err := Open(ctx, st, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RemoveAll(ctx, []int64{200}); err != nil {
		t.Fatal(err)
	}

	r2, err := Open(ctx, storage.NewFileStore(path, logx.Nop()), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if got := r2.Snapshot(); !reflect.DeepEqual(got, []int64{100, 300}) {
		t.Fatalf("after restart=%v", got)
	}
}

func TestConcurrentAdds(t *testing.T) {
	st := &memStore{}
	r, _ := Open(context.Background(), st, logx.Nop())
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = r.Add(context.Background(), id%25+1)
		}(int64(i))
	}
	wg.Wait()
	if r.Len() != 25 || len(st.ids) != 25 {
		t.Fatalf("len=%d persisted=%d", r.Len(), len(st.ids))
	}
}

// Adds racing removals must leave the store holding exactly the in-memory set.
func TestConcurrentAddAndRemoveKeepStoreInSync(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users_database.db")
	st := storage.NewFileStore(path, logx.Nop())
	r, err := Open(ctx, st, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := int64(1); i <= 40; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			_, _ = r.Add(ctx, id)
		}(i)
		go func(id int64) {
			defer wg.Done()
			_, _ = r.RemoveAll(ctx, []int64{id, id + 1})
		}(i)
	}
	wg.Wait()

	persisted, err := storage.NewFileStore(path, logx.Nop()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Snapshot(); !reflect.DeepEqual(persisted, got) && !(len(persisted) == 0 && len(got) == 0) {
		t.Fatalf("persisted=%v memory=%v", persisted, got)
	}
}
