package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardstore/internal/codec"
	"github.com/roach88/boardstore/internal/view"
)

// codecFor picks the codec named by flag, else by the file extension, else
// JSON.
func codecFor(flag, path string) (codec.Codec, error) {
	if flag != "" {
		return codec.ByName(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return codec.YAML{}, nil
	case ".bson":
		return codec.BSON{}, nil
	}
	return codec.JSON{}, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var codecName string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export all boards, groups and items",
		Long: `Export all boards, groups and items.

Without a file the encoded payload is written to stdout. The codec is taken
from --codec, else from the file extension (.json, .yaml, .bson).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				c, err := codecFor(codecName, path)
				if err != nil {
					return usageError("%v", err)
				}
				data, err := s.View.ExportEncoded(ctx, c)
				if err != nil {
					return err
				}
				if path == "" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				return f.Success(MessageResult{Message: fmt.Sprintf("exported %d bytes to %s (%s)", len(data), path, c.Name())})
			})
		},
	}
	cmd.Flags().StringVar(&codecName, "codec", "", fmt.Sprintf("payload encoding %v", codec.Names()))
	return cmd
}

// ImportSummary is the output of import.
type ImportSummary struct {
	File string `json:"file"`
	view.ImportResult
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("imported %s: %d created, %d updated, %d unchanged, %d skipped",
		s.File, s.Created, s.Updated, s.Unchanged, s.Skipped)
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var codecName string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import boards, groups and items from an export",
		Long: `Import boards, groups and items from an export.

Records are matched by id. Existing records are updated in place, missing
ones are created with their exported id. Entries without an id, or whose
parent is not in the file, are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				c, err := codecFor(codecName, args[0])
				if err != nil {
					return usageError("%v", err)
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read import: %w", err)
				}
				res, err := s.View.ImportBytes(ctx, data, c)
				if err != nil {
					return err
				}
				return f.Success(ImportSummary{File: args[0], ImportResult: res})
			})
		},
	}
	cmd.Flags().StringVar(&codecName, "codec", "", fmt.Sprintf("payload encoding %v", codec.Names()))
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record, index and preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				if !yes {
					return usageError("reset deletes all data; pass --yes to confirm")
				}
				if err := s.View.Reset(ctx); err != nil {
					return err
				}
				return f.Success(MessageResult{Message: "all data deleted"})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
