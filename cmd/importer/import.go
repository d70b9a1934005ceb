package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"confimport/internal/app"
	"confimport/internal/importer"
	"confimport/ioc"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a configuration package into the configured store",
	Long: `Import a configuration package. Use "-" to read the package from stdin.
Without a file argument the source configured under "source" is fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	backend, err := ioc.InitStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	src, err := ioc.InitSource(cfg)
	if err != nil {
		_ = backend.Close(ctx)
		return err
	}
	svc, err := app.NewService(cfg, backend, src, logger)
	if err != nil {
		_ = backend.Close(ctx)
		return err
	}
	defer svc.Close(ctx)

	var res *importer.Result
	if len(args) == 0 {
		res, err = svc.Import(ctx)
	} else {
		doc, readErr := readPackage(ctx, args[0])
		if readErr != nil {
			return readErr
		}
		res, err = svc.ImportDocument(ctx, doc, nil)
	}
	if err != nil {
		return fmt.Errorf("导入失败: %w", err)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func printResult(out io.Writer, res *importer.Result) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run %s finished in %s\n", res.RunID, res.Duration)
	fmt.Fprintln(w, "KIND\tCREATED\tUPDATED\tDELETED")
	for _, kind := range res.Kinds() {
		s := res.Stats[kind]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", kind, s.Created, s.Updated, s.Deleted)
	}
	total := res.Totals()
	fmt.Fprintf(w, "total\t%d\t%d\t%d\n", total.Created, total.Updated, total.Deleted)
	_ = w.Flush()
}
