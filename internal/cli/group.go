package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/model"
)

// NewGroupCommand creates the group command group.
func NewGroupCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups inside boards",
	}
	cmd.AddCommand(newGroupAddCommand(opts))
	cmd.AddCommand(newShowCommand(opts, model.TypeGroup))
	cmd.AddCommand(newEditCommand(opts, model.TypeGroup))
	cmd.AddCommand(newRemoveCommand(opts, model.TypeGroup))
	cmd.AddCommand(newMarkCommand(opts, model.TypeGroup, true))
	cmd.AddCommand(newMarkCommand(opts, model.TypeGroup, false))
	cmd.AddCommand(newMoveCommand(opts, model.TypeGroup))
	return cmd
}

func newGroupAddCommand(opts *RootOptions) *cobra.Command {
	var showAll bool
	cmd := &cobra.Command{
		Use:     "add <board-id> <label>",
		Short:   "Create a group in a board",
		Example: `  boards group add 0b6f... Groceries`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				board, err := lookup(ctx, s.View, model.TypeBoard, args[0])
				if err != nil {
					return err
				}
				g := model.Group{Rel: board.ID(), Label: args[1], Marked: !showAll}
				rec, err := s.View.CreateModel(ctx, model.TypeGroup, g.Data(), board, "")
				if err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
	cmd.Flags().BoolVar(&showAll, "show-all", false, "show marked items too (group starts unmarked)")
	return cmd
}
