package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	logx "releasebot/pkg/logx"
)

func TestDecodeIDs(t *testing.T) {
	ids, err := decodeIDs(strings.NewReader("101\r\n\n-100200\n101\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int64{101, -100200, 101}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
}

func TestDecodeIDsCorrupt(t *testing.T) {
	long := "1\n" + strings.Repeat("9", 70*1024) + "\n"
	for _, in := range []string{"12\nabc\n", "0\n", "1.5\n", long} {
		if _, err := decodeIDs(strings.NewReader(in)); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%.20q: expected ErrCorrupt, got %v", in, err)
		}
	}
}

func TestEncodeIDsSortedDeduped(t *testing.T) {
	got := string(encodeIDs([]int64{3, 1, 3, -2}))
	if got != "-2\n1\n3\n" {
		t.Fatalf("got %q", got)
	}
	if got := encodeIDs(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "users", "db.txt"), logx.Nop())
	ids, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty, got %v", ids)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users", "db.txt")
	s := NewFileStore(path, logx.Nop())
	ctx := context.Background()

	if err := s.Save(ctx, []int64{42, 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	reopened := NewFileStore(path, logx.Nop())
	ids, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{7, 42}) {
		t.Fatalf("ids=%v", ids)
	}

	if err := s.Save(ctx, []int64{7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, _ = reopened.Load(ctx)
	if !reflect.DeepEqual(ids, []int64{7}) {
		t.Fatalf("after shrink ids=%v", ids)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.txt")
	if err := os.WriteFile(path, []byte("1\nnope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileStore(path, logx.Nop()).Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestFileStoreSaveUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	// Parent "directory" is a regular file.
	s := NewFileStore(filepath.Join(blocker, "db.txt"), logx.Nop())
	if err := s.Save(context.Background(), []int64{1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subs.db")
	s, err := Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ids, err := s.Load(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("fresh load ids=%v err=%v", ids, err)
	}
	if err := s.Save(ctx, []int64{5, -9, 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, []int64{5, 11}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{5, 11}) {
		t.Fatalf("ids=%v", ids)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenDefaultsToFile(t *testing.T) {
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
}
