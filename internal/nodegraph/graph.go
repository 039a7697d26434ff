package nodegraph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrCycle           = errors.New("node graph contains a cycle")
	ErrDanglingPointer = errors.New("node points outside its graph")
)

// Link is the pointer view of a node: its id and its forward references.
// AltNext is only set on description nodes carrying a second button.
type Link struct {
	ID      uuid.UUID
	Next    *uuid.UUID
	AltNext *uuid.UUID
}

// Walk follows Next pointers from start and returns the visited ids in order.
// A nil start yields an empty sequence.
func Walk(start *uuid.UUID, links map[uuid.UUID]Link) ([]uuid.UUID, error) {
	var order []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(links))
	cur := start
	for cur != nil {
		if seen[*cur] {
			return nil, fmt.Errorf("%w: node %s revisited", ErrCycle, *cur)
		}
		link, ok := links[*cur]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDanglingPointer, *cur)
		}
		seen[*cur] = true
		order = append(order, link.ID)
		cur = link.Next
	}
	return order, nil
}

// Validate checks that every pointer stays inside the given set and that the
// graph formed by Next and AltNext edges is acyclic.
func Validate(links []Link) error {
	index := make(map[uuid.UUID]Link, len(links))
	for _, l := range links {
		index[l.ID] = l
	}
	for _, l := range links {
		for _, p := range []*uuid.UUID{l.Next, l.AltNext} {
			if p == nil {
				continue
			}
			if _, ok := index[*p]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrDanglingPointer, l.ID, *p)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	colour := make(map[uuid.UUID]int, len(links))
	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		colour[id] = grey
		l := index[id]
		for _, p := range []*uuid.UUID{l.Next, l.AltNext} {
			if p == nil {
				continue
			}
			switch colour[*p] {
			case grey:
				return fmt.Errorf("%w: %s -> %s", ErrCycle, id, *p)
			case white:
				if err := visit(*p); err != nil {
					return err
				}
			}
		}
		colour[id] = black
		return nil
	}
	for _, l := range links {
		if colour[l.ID] == white {
			if err := visit(l.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Chain returns the positional successor of every id: ids[i] -> ids[i+1],
// the last one -> nil.
func Chain(ids []uuid.UUID) map[uuid.UUID]*uuid.UUID {
	next := make(map[uuid.UUID]*uuid.UUID, len(ids))
	for i, id := range ids {
		if i+1 < len(ids) {
			n := ids[i+1]
			next[id] = &n
		} else {
			next[id] = nil
		}
	}
	return next
}
