package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load or build the document index and print its status",
	Long: `Load the stored index, or build it from the documents folder when no
stored index exists. With --rebuild the stored index is deleted first, which
is the way to pick up added or changed documents.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "delete the stored index and build it again")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	initialize := a.svc.Initialize
	if indexRebuild {
		initialize = a.svc.Rebuild
	}
	status, err := initialize(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s (%w)", status, err)
	}
	cmd.Println(status)
	return nil
}
