package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/model"
	"github.com/roach88/boardstore/internal/record"
)

// NewSingletonCommand creates the show/set/import/reset commands for a
// singleton type (settings, theme).
func NewSingletonCommand(opts *RootOptions, typ, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   typ,
		Short: short,
	}
	cmd.AddCommand(newSingletonShowCommand(opts, typ))
	cmd.AddCommand(newSingletonSetCommand(opts, typ))
	cmd.AddCommand(newSingletonImportCommand(opts, typ))
	cmd.AddCommand(newSingletonResetCommand(opts, typ))
	return cmd
}

// ThemeCSS lists the theme colours as CSS values.
type ThemeCSS struct {
	Theme  string            `json:"theme"`
	Colors map[string]string `json:"colors"`

	order []string
}

func (t ThemeCSS) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "theme: %s", t.Theme)
	for _, name := range t.order {
		fmt.Fprintf(&b, "\n  %s: %s", name, t.Colors[name])
	}
	return b.String()
}

func themeCSS(rec *record.Record) (ThemeCSS, error) {
	th := model.ThemeFrom(rec)
	out := ThemeCSS{Theme: th.Name, Colors: make(map[string]string, len(th.Colors))}
	for _, name := range rec.Schema().FieldNames() {
		c, ok := th.Colors[name]
		if !ok {
			continue
		}
		css, err := c.RGBA()
		if err != nil {
			return out, err
		}
		out.Colors[name] = css
		out.order = append(out.order, name)
	}
	return out, nil
}

func newSingletonShowCommand(opts *RootOptions, typ string) *cobra.Command {
	var css bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: fmt.Sprintf("Show the current %s", typ),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := s.View.Singleton(ctx, typ)
				if err != nil {
					return err
				}
				if css {
					out, err := themeCSS(rec)
					if err != nil {
						return err
					}
					return f.Success(out)
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
	if typ == model.TypeTheme {
		cmd.Flags().BoolVar(&css, "css", false, "print colours as rgba() values")
	}
	return cmd
}

func newSingletonSetCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:     "set <field=value>...",
		Short:   fmt.Sprintf("Change %s fields", typ),
		Example: "  boards settings set boardColumns=3 itemShowNote=modal\n  boards theme set theme=custom itemColorText=#222222",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := s.View.Singleton(ctx, typ)
				if err != nil {
					return err
				}
				data, err := parseAssignments(rec.Schema(), args)
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

func newSingletonImportCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: fmt.Sprintf("Replace %s fields from a JSON object", typ),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s import: %w", typ, err)
				}
				rec, err := s.View.Singleton(ctx, typ)
				if err != nil {
					return err
				}
				if err := s.View.ImportSingleton(ctx, rec, data); err != nil {
					return err
				}
				return f.Success(newRecordResult(rec))
			})
		},
	}
}

func newSingletonResetCommand(opts *RootOptions, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: fmt.Sprintf("Restore the default %s", typ),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				rec, err := s.View.Singleton(ctx, typ)
				if err != nil {
					return err
				}
				fresh, err := s.View.ResetSingleton(ctx, rec)
				if err != nil {
					return err
				}
				return f.Success(newRecordResult(fresh))
			})
		},
	}
}
