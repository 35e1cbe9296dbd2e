package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/model"
	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/view"
)

// TreeResult is the nested board, group and item listing.
type TreeResult struct {
	Boards []TreeBoard `json:"boards"`
}

// TreeBoard is one board in a tree.
type TreeBoard struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Groups []TreeGroup `json:"groups"`
}

// TreeGroup is one group in a tree.
type TreeGroup struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Stats view.GroupStats `json:"stats"`
	Items []model.Item    `json:"items"`
}

func (t TreeResult) String() string {
	if len(t.Boards) == 0 {
		return "no boards"
	}
	var b strings.Builder
	for i, board := range t.Boards {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%s]", board.Title, board.ID)
		for _, g := range board.Groups {
			state := ""
			if g.Stats.Completed {
				state = ", completed"
			}
			fmt.Fprintf(&b, "\n  %s [%s] %d/%d marked%s", g.Label, g.ID, g.Stats.Marked, g.Stats.Items, state)
			for _, it := range g.Items {
				check := " "
				if it.Marked {
					check = "x"
				}
				fmt.Fprintf(&b, "\n    [%s] %s", check, it.Label)
				if it.Amount != 0 {
					fmt.Fprintf(&b, " x%d", it.Amount)
				}
				if link := it.Link(); link != "" {
					fmt.Fprintf(&b, " <%s>", link)
				}
				fmt.Fprintf(&b, " [%s]", it.ID)
			}
		}
	}
	return b.String()
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [board-id]",
		Short: "Show boards with their groups and items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				var boards []*record.Record
				if len(args) == 1 {
					b, err := lookup(ctx, s.View, model.TypeBoard, args[0])
					if err != nil {
						return err
					}
					boards = []*record.Record{b}
				} else {
					all, err := s.View.GetModels(ctx, model.TypeBoard, nil, nil)
					if err != nil {
						return err
					}
					boards = all
				}
				tree, err := buildTree(ctx, s.View, boards)
				if err != nil {
					return err
				}
				return f.Success(tree)
			})
		},
	}
}

func buildTree(ctx context.Context, v *view.ViewCache, boards []*record.Record) (TreeResult, error) {
	out := TreeResult{Boards: []TreeBoard{}}
	for _, b := range boards {
		tb := TreeBoard{ID: b.ID(), Title: model.BoardFrom(b).Title(), Groups: []TreeGroup{}}
		groups, err := v.Children(ctx, b)
		if err != nil {
			return out, err
		}
		for _, g := range groups {
			stats, err := v.GroupStats(ctx, g)
			if err != nil {
				return out, err
			}
			items, err := v.Children(ctx, g)
			if err != nil {
				return out, err
			}
			tg := TreeGroup{ID: g.ID(), Label: model.GroupFrom(g).Label, Stats: stats, Items: []model.Item{}}
			for _, it := range items {
				tg.Items = append(tg.Items, model.ItemFrom(it))
			}
			tb.Groups = append(tb.Groups, tg)
		}
		out.Boards = append(out.Boards, tb)
	}
	return out, nil
}
