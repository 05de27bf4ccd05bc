// Package access holds the fixed admin allow-list.
package access

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnauthorized is returned by Authorize for identities outside the list.
var ErrUnauthorized = errors.New("unauthorized")

// Gate is immutable after New and safe for concurrent use.
type Gate struct {
	admins map[int64]struct{}
	list   []int64
}

func New(admins []int64) *Gate {
	g := &Gate{admins: make(map[int64]struct{}, len(admins))}
	for _, id := range admins {
		if _, dup := g.admins[id]; dup {
			continue
		}
		g.admins[id] = struct{}{}
		g.list = append(g.list, id)
	}
	sort.Slice(g.list, func(i, j int) bool { return g.list[i] < g.list[j] })
	return g
}

func (g *Gate) Allowed(id int64) bool {
	if g == nil {
		return false
	}
	_, ok := g.admins[id]
	return ok
}

func (g *Gate) Authorize(id int64) error {
	if g.Allowed(id) {
		return nil
	}
	return fmt.Errorf("%w: user %d", ErrUnauthorized, id)
}

// Admins returns a copy of the allow-list, sorted.
func (g *Gate) Admins() []int64 {
	if g == nil {
		return nil
	}
	return append([]int64(nil), g.list...)
}
