package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.svc.Initialize(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s (%w)", status, err)
	}
	cmd.Println(a.svc.Ask(cmd.Context(), strings.Join(args, " ")))
	return nil
}
