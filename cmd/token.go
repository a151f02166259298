package cmd

import (
	"errors"
	"fmt"

	"github.com/languatalk/langua-go/pkg/authsession"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the stored access token",
	Long:  `Print the stored access token, for piping into curl or other tools.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		storage, err := newStorage(cfg)
		if err != nil {
			return err
		}
		defer storage.Close()

		token, err := storage.Get(cmd.Context(), authsession.KeyAuthToken)
		if errors.Is(err, authsession.ErrNotFound) || (err == nil && token == "") {
			return fmt.Errorf("not signed in, run `langua login` first")
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
