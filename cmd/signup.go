package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/languatalk/langua-go/pkg/authsession"
	"github.com/spf13/cobra"
)

var (
	signupName      string
	signupEmail     string
	signupMarketing bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a Langua account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		reader := bufio.NewReader(os.Stdin)
		prompt := func(label, preset string) (string, error) {
			if preset != "" {
				return preset, nil
			}
			fmt.Printf("%s: ", label)
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(line), nil
		}

		name, err := prompt("Name", signupName)
		if err != nil {
			return err
		}
		email, err := prompt("Email", signupEmail)
		if err != nil {
			return err
		}
		password, err := prompt("Password", "")
		if err != nil {
			return err
		}

		err = mgr.Signup(cmd.Context(), authsession.SignupParams{
			Name:             name,
			Email:            email,
			Password:         password,
			AcceptsMarketing: signupMarketing,
		})
		if err != nil {
			return fmt.Errorf("signup failed: %w", err)
		}

		if user := mgr.User(); user != nil {
			fmt.Printf("Account created for %s\n", user.Email)
		}
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupName, "name", "", "first name")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "account email")
	signupCmd.Flags().BoolVar(&signupMarketing, "marketing-emails", false, "opt in to marketing emails")
	rootCmd.AddCommand(signupCmd)
}
