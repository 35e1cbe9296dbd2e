package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
	"github.com/roach88/boardstore/internal/view"
)

// RecordResult is the output form of one record.
type RecordResult struct {
	Type   string         `json:"type"`
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`

	order []string
}

func newRecordResult(rec *record.Record) RecordResult {
	return RecordResult{
		Type:   rec.Type(),
		ID:     rec.ID(),
		Fields: rec.Fields(),
		order:  rec.Schema().FieldNames(),
	}
}

func (r RecordResult) String() string {
	var b strings.Builder
	b.WriteString(r.Type)
	if r.ID != "" {
		b.WriteString(" " + r.ID)
	}
	for _, name := range r.order {
		if v, ok := r.Fields[name]; ok && !schema.IsEmpty(v) {
			fmt.Fprintf(&b, "\n  %s: %v", name, v)
		}
	}
	return b.String()
}

// MessageResult is a one-line confirmation.
type MessageResult struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

func (m MessageResult) String() string { return m.Message }

// lookup returns the stored record typ/id.
func lookup(ctx context.Context, v *view.ViewCache, typ, id string) (*record.Record, error) {
	rec, err := v.First(ctx, typ, view.Query{schema.IDField: id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storeerr.New(storeerr.KindNotFound, storeerr.CodeRecordNotFound, "cli.lookup",
			fmt.Sprintf("%s %q does not exist", typ, id))
	}
	return rec, nil
}

// parseAssignments turns "field=value" arguments into typed field values.
func parseAssignments(t *schema.Type, args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	var errs []storeerr.FieldError
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, usageError("expected field=value, got %q", arg)
		}
		f, ok := t.Field(name)
		if !ok {
			errs = append(errs, storeerr.FieldError{Field: name, Message: fmt.Sprintf("%s has no field %q", t.Name, name)})
			continue
		}
		v, err := f.Parse(raw)
		if err != nil {
			errs = append(errs, storeerr.FieldError{Field: name, Message: err.Error()})
			continue
		}
		data[name] = v
	}
	if len(errs) > 0 {
		return nil, storeerr.Validation("cli.parse", fmt.Sprintf("invalid %s fields", t.Name), errs)
	}
	return data, nil
}

func newEditCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <field=value>...",
		Short: fmt.Sprintf("Change fields of a %s", typ),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, typ, args[0])
				if err != nil {
					return err
				}
				data, err := parseAssignments(rec.Schema(), args[1:])
				if err != nil {
					return err
				}
				if err := s.View.UpdateModel(ctx, rec, data); err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}

func newShowCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show a %s", typ),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, typ, args[0])
				if err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}

func newRemoveCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete a %s and everything in it", typ),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, typ, args[0])
				if err != nil {
					return err
				}
				if err := s.View.DeleteModelStructure(ctx, rec); err != nil {
					return err
				}
				return f.Success(MessageResult{Message: fmt.Sprintf("deleted %s %s", typ, args[0]), ID: args[0]})
			})
		},
	}
}

func newMoveCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:       "move <id> up|down",
		Short:     fmt.Sprintf("Move a %s one place among its siblings", typ),
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[1]
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				if dir != "up" && dir != "down" {
					return usageError("direction must be up or down, got %q", dir)
				}
				rec, err := lookup(ctx, s.View, typ, args[0])
				if err != nil {
					return err
				}
				move := s.View.MoveDown
				if dir == "up" {
					move = s.View.MoveUp
				}
				moved, err := move(ctx, rec)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("moved %s %s %s", typ, rec.ID(), dir)
				if !moved {
					msg = fmt.Sprintf("%s %s cannot move %s", typ, rec.ID(), dir)
				}
				return f.Success(MessageResult{Message: msg, ID: rec.ID()})
			})
		},
	}
}

func newMarkCommand(opts *RootOptions, typ string, marked bool) *cobra.Command {
	use, verb := "mark", "Mark"
	if !marked {
		use, verb = "unmark", "Unmark"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("%s a %s", verb, typ),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := lookup(ctx, s.View, typ, args[0])
				if err != nil {
					return err
				}
				if err := s.View.UpdateModel(ctx, rec, map[string]any{"marked": marked}); err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}
