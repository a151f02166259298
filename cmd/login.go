package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/languatalk/langua-go/pkg/authsession"
	"github.com/spf13/cobra"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		email := loginEmail
		reader := bufio.NewReader(os.Stdin)
		if email == "" {
			fmt.Print("Email: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			email = strings.TrimSpace(line)
		}
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		password := strings.TrimSpace(line)

		if err := mgr.Login(cmd.Context(), email, password); err != nil {
			if errors.Is(err, authsession.ErrInvalidCredentials) {
				return fmt.Errorf("%s", err)
			}
			return fmt.Errorf("login failed: %w", err)
		}

		if user := mgr.User(); user != nil {
			fmt.Printf("Signed in as %s\n", user.Email)
		}
		return nil
	},
}

var googleLoginCmd = &cobra.Command{
	Use:   "login-google",
	Short: "Sign in with Google",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}
		if err := mgr.GoogleSignIn(cmd.Context()); err != nil {
			if errors.Is(err, authsession.ErrCancelled) {
				fmt.Println("Sign in was cancelled.")
				return nil
			}
			return err
		}
		if user := mgr.User(); user != nil {
			fmt.Printf("Signed in as %s\n", user.Email)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(googleLoginCmd)
}
