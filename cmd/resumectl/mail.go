package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Manage the mail account used for outgoing mail",
}

var mailAuthorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize the Gmail account and save its token",
	Long: `Authorize the Gmail account and save its token.

Open the printed link, grant access, and paste the authorization code
back. The token is written to mail.token_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := auth.GmailConfig(cfg.Mail.CredentialsFile)
		if err != nil {
			return err
		}

		authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Fprintf(cmd.OutOrStdout(), "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

		code, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		tok, err := config.Exchange(cmd.Context(), strings.TrimSpace(code))
		if err != nil {
			return fmt.Errorf("exchanging authorization code: %w", err)
		}
		if err := auth.SaveToken(cfg.Mail.TokenFile, tok); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", cfg.Mail.TokenFile)
		return nil
	},
}

func init() {
	mailCmd.AddCommand(mailAuthorizeCmd)
}
