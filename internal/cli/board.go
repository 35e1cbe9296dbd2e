package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/model"
)

// NewBoardCommand creates the board command group.
func NewBoardCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Manage boards",
	}
	cmd.AddCommand(newBoardAddCommand(opts))
	cmd.AddCommand(newBoardListCommand(opts))
	cmd.AddCommand(newShowCommand(opts, model.TypeBoard))
	cmd.AddCommand(newEditCommand(opts, model.TypeBoard))
	cmd.AddCommand(newRemoveCommand(opts, model.TypeBoard))
	cmd.AddCommand(newMoveCommand(opts, model.TypeBoard))
	return cmd
}

func newBoardAddCommand(opts *RootOptions) *cobra.Command {
	var icon string
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Create a board",
		Example: `  boards board add Home
  boards board add Work --icon W`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				b := model.Board{Icon: icon, Label: args[0]}
				rec, err := s.View.CreateModel(ctx, model.TypeBoard, b.Data(), nil, "")
				if err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
	cmd.Flags().StringVar(&icon, "icon", "", "short icon shown before the label")
	return cmd
}

// BoardList is the output of board ls.
type BoardList struct {
	Boards []BoardSummary `json:"boards"`
}

// BoardSummary is one listed board.
type BoardSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Groups int    `json:"groups"`
}

func (l BoardList) String() string {
	if len(l.Boards) == 0 {
		return "no boards"
	}
	var b strings.Builder
	for i, s := range l.Boards {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s (%d groups)", s.ID, s.Title, s.Groups)
	}
	return b.String()
}

func newBoardListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List boards in order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				recs, err := s.View.GetModels(ctx, model.TypeBoard, nil, nil)
				if err != nil {
					return err
				}
				out := BoardList{Boards: []BoardSummary{}}
				for _, rec := range recs {
					stats, err := s.View.BoardStats(ctx, rec)
					if err != nil {
						return err
					}
					b := model.BoardFrom(rec)
					out.Boards = append(out.Boards, BoardSummary{ID: b.ID, Title: b.Title(), Groups: stats.Groups})
				}
				return f.Success(out)
			})
		},
	}
}
