package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/schedule"
)

func newExportCmd(e *env) *cobra.Command {
	var format, target, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the schedule as JSON, CSV or ICS",
		Long: "Export the stored schedule. --format auto picks the format --target imports best " +
			"(google, outlook, ical and apple get ICS). Without --out the file goes to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			var export interchange.Export
			if format == "auto" {
				export, err = s.service.ExportFor(ctx, target)
			} else {
				f, perr := interchange.ParseFormat(format)
				if perr != nil {
					return perr
				}
				export, err = s.service.Export(ctx, f)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if out == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), export.Body)
				return err
			}
			if err := os.WriteFile(out, []byte(export.Body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", out, export.MIMEType)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json, csv, ics or auto")
	cmd.Flags().StringVar(&target, "target", "", "target application for --format auto")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(e *env) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a JSON, CSV or ICS file",
		Long: "Import appointments from FILE. The format comes from the extension, or from the " +
			"content when the extension is unknown. By default appointments are merged by id; " +
			"--replace swaps the whole schedule.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.service.Import(context.Background(), filepath.Base(args[0]), string(data), replace)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			printImportResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the stored schedule instead of merging")
	return cmd
}

func newConvertCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert an interchange file to another format",
		Long: "Read IN and write it to OUT in the format named by OUT's extension (or --format). " +
			"The database is not touched.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			if format == "" {
				format = filepath.Ext(out)
			}
			f, err := interchange.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}

			cfg, err := e.config()
			if err != nil {
				return err
			}
			svc := schedule.New(nil, schedule.Options{Zone: cfg.Timezone})
			export, result, err := svc.Convert(filepath.Base(in), string(data), f)
			if err != nil {
				return fmt.Errorf("convert: %w", err)
			}
			if err := os.WriteFile(out, []byte(export.Body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			printImportResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format (default from OUT's extension)")
	return cmd
}

func printImportResult(w io.Writer, r schedule.ImportResult) {
	fmt.Fprintf(w, "%s: %d imported, %d skipped, %d rejected\n", r.Format, r.Imported, len(r.Skipped), len(r.Rejected))
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped line %d: %s\n", s.Line, s.Reason)
	}
	for _, rj := range r.Rejected {
		if rj.Field != "" {
			fmt.Fprintf(w, "  rejected %s (%s): %s\n", rj.ID, rj.Field, rj.Reason)
			continue
		}
		fmt.Fprintf(w, "  rejected %s: %s\n", rj.ID, rj.Reason)
	}
}
