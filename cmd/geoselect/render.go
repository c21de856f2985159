package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andreiashu/geoselect"
)

var (
	renderURL string
	renderOut string
)

var renderCmd = &cobra.Command{
	Use:   "render <template.html>",
	Short: "Populate a form template's country/city controls from a running service",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderURL, "url", "http://localhost:8080", "base URL of the lookup service")
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "", "write to this file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer in.Close()

	doc, err := geoselect.ParseDocument(in, geoselect.WithDocumentLogger(logger))
	if err != nil {
		return err
	}

	loader := geoselect.NewLoader(geoselect.WithBaseURL(renderURL), geoselect.WithLogger(logger))
	pairs := doc.Bind(cmd.Context(), loader, cfg.Pairs...)
	logger.Debug("template bound",
		zap.Int("pairs", len(pairs)),
		zap.Stringer("loader_state", loader.State()))

	out := os.Stdout
	if renderOut != "" {
		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return doc.Render(out)
}
