package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/languatalk/langua-go/pkg/authsession"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		req, err := mgr.NewRequest(cmd.Context(), http.MethodGet, "/me", nil)
		if err != nil {
			return err
		}
		resp, err := mgr.Do(req)
		if err != nil {
			if errors.Is(err, authsession.ErrNoCredential) {
				return fmt.Errorf("not signed in, run `langua login` first")
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("not signed in (backend answered %d), run `langua login` first", resp.StatusCode)
		}

		var user authsession.User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return fmt.Errorf("decoding profile: %w", err)
		}

		fmt.Printf("%s", user.Email)
		if user.FirstName != "" {
			fmt.Printf(" (%s %s)", user.FirstName, user.LastName)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
