package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreiashu/geoselect"
)

var checkFilesCmd = &cobra.Command{
	Use:   "check-files <file>...",
	Short: "Check supporting documents against the upload limits",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckFiles,
}

func runCheckFiles(cmd *cobra.Command, args []string) error {
	files, err := geoselect.FilesFromPaths(args...)
	if err != nil {
		return err
	}
	if err := cfg.Upload.Validate(files); err != nil {
		return err
	}

	var total int64
	for _, f := range files {
		total += f.Size
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Name, geoselect.FormatFileSize(f.Size))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total\t%s / %s\n",
		geoselect.FormatFileSize(total), geoselect.FormatFileSize(cfg.Upload.MaxTotalSize))
	return nil
}
