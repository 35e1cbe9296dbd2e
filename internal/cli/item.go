package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/model"
	"github.com/roach88/boardstore/internal/record"
)

// NewItemCommand creates the item command group.
func NewItemCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items inside groups",
	}
	cmd.AddCommand(newItemAddCommand(opts))
	cmd.AddCommand(newShowCommand(opts, model.TypeItem))
	cmd.AddCommand(newEditCommand(opts, model.TypeItem))
	cmd.AddCommand(newRemoveCommand(opts, model.TypeItem))
	cmd.AddCommand(newMarkCommand(opts, model.TypeItem, true))
	cmd.AddCommand(newMarkCommand(opts, model.TypeItem, false))
	cmd.AddCommand(newAmountCommand(opts, "more", 1))
	cmd.AddCommand(newAmountCommand(opts, "less", -1))
	cmd.AddCommand(newMoveCommand(opts, model.TypeItem))
	cmd.AddCommand(newItemLinkCommand(opts))
	return cmd
}

func newItemAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <group-id> <label> [field=value]...",
		Short: "Create an item in a group",
		Long: `Create an item in a group.

The variant defaults to the defaultVariant setting. Other fields are given
as field=value pairs.`,
		Example: `  boards item add 9c1e... Milk amount=2
  boards item add 9c1e... Docs variant=url url=https://example.org`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				group, err := lookup(ctx, s.View, model.TypeGroup, args[0])
				if err != nil {
					return err
				}
				rec, err := record.New(s.Repo, model.TypeItem, nil)
				if err != nil {
					return err
				}
				data, err := parseAssignments(rec.Schema(), args[2:])
				if err != nil {
					return err
				}
				data["label"] = args[1]
				if _, ok := data["variant"]; !ok {
					settings, err := s.View.Singleton(ctx, model.TypeSettings)
					if err != nil {
						return err
					}
					data["variant"] = model.SettingsFrom(settings).DefaultVariant
				}
				rec, err = s.View.CreateModel(ctx, model.TypeItem, data, group, "")
				if err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}

func newAmountCommand(opts *RootOptions, use string, delta int64) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Change an item's amount by %+d", delta),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, model.TypeItem, args[0])
				if err != nil {
					return err
				}
				it := model.ItemFrom(rec)
				if err := s.View.UpdateModel(ctx, rec, map[string]any{"amount": it.Amount + delta}); err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}

// LinkResult is the output of item link.
type LinkResult struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

func (l LinkResult) String() string { return l.Link }

func newItemLinkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id>",
		Short: "Print the URL of a url or youtube item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, model.TypeItem, args[0])
				if err != nil {
					return err
				}
				it := model.ItemFrom(rec)
				link := it.Link()
				if link == "" {
					return usageError("item %s (%s) has no link", it.ID, it.Variant)
				}
				return f.Success(LinkResult{ID: it.ID, Link: link})
			})
		},
	}
}
