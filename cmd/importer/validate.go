package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"confimport/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Decode a package and check its trigger expressions without touching the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	doc, err := readPackage(ctx, args[0])
	if err != nil {
		return err
	}
	flow := &app.ValidateFlow{Rules: cfg.Import.Rules, Logger: logger}
	if err := flow.Run(ctx, doc); err != nil {
		return fmt.Errorf("校验失败: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", doc.Name)
	return nil
}
