package access

import (
	"errors"
	"reflect"
	"testing"
)

// Allow-list {100}; a request from 200 is refused.
func TestAuthorize(t *testing.T) {
	g := New([]int64{100})
	if err := g.Authorize(100); err != nil {
		t.Fatalf("admin refused: %v", err)
	}
	if err := g.Authorize(200); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if g.Allowed(200) {
		t.Fatal("200 must not be allowed")
	}
}

func TestAllowListIsCopied(t *testing.T) {
	in := []int64{3, 1, 3}
	g := New(in)
	in[0] = 999
	if g.Allowed(999) || !g.Allowed(3) {
		t.Fatal("gate must not alias the input slice")
	}
	out := g.Admins()
	if !reflect.DeepEqual(out, []int64{1, 3}) {
		t.Fatalf("admins=%v", out)
	}
	out[0] = 42
	if g.Allowed(42) {
		t.Fatal("Admins must return a copy")
	}
}

func TestNilAndEmptyGateDenies(t *testing.T) {
	var g *Gate
	if g.Allowed(1) || New(nil).Allowed(0) {
		t.Fatal("empty gate must deny")
	}
}
