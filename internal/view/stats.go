package view

import (
	"context"

	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/schema"
)

// BoardStats summarizes a board.
type BoardStats struct {
	Groups int `json:"groups"`
}

// GroupStats summarizes a group. A group is completed when it has items
// and all of them are marked.
type GroupStats struct {
	Items     int  `json:"items"`
	Marked    int  `json:"marked"`
	Unmarked  int  `json:"unmarked"`
	Completed bool `json:"completed"`
}

// Children returns the records of rec's child type whose rel is rec's id,
// with rec attached as their parent.
func (v *ViewCache) Children(ctx context.Context, rec *record.Record) ([]*record.Record, error) {
	child := rec.Schema().Child
	if child == "" || rec.ID() == "" {
		return nil, nil
	}
	children, err := v.GetModels(ctx, child, nil, Query{schema.RelField: rec.ID()})
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Parent() == nil {
			c.SetParent(rec)
		}
	}
	return children, nil
}

// BoardStats counts the groups of board.
func (v *ViewCache) BoardStats(ctx context.Context, board *record.Record) (BoardStats, error) {
	groups, err := v.Children(ctx, board)
	if err != nil {
		return BoardStats{}, err
	}
	return BoardStats{Groups: len(groups)}, nil
}

// GroupStats counts the marked and unmarked items of group.
func (v *ViewCache) GroupStats(ctx context.Context, group *record.Record) (GroupStats, error) {
	items, err := v.Children(ctx, group)
	if err != nil {
		return GroupStats{}, err
	}
	s := GroupStats{Items: len(items)}
	for _, it := range items {
		if it.Bool("marked") {
			s.Marked++
		} else {
			s.Unmarked++
		}
	}
	s.Completed = s.Items > 0 && s.Unmarked == 0
	return s, nil
}
