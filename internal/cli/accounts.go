package cli

import (
	"fmt"

	uitable "github.com/cppforlife/go-cli-ui/ui/table"
	"github.com/spf13/cobra"

	"github.com/atinyakov/HubViewer/internal/client"
	"github.com/atinyakov/HubViewer/internal/models"
)

// NewLoginCmd logs in with an organization, a user and an access token and
// stores the resulting account as the active one.
func NewLoginCmd(o *Options) *cobra.Command {
	var preset models.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Add a registry account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := client.PromptCredentials(cmd.InOrStdin(), cmd.OutOrStdout(), preset)
			if err != nil {
				return err
			}
			c, err := o.newClient(false)
			if err != nil {
				return err
			}
			resp, err := c.Login(cmd.Context(), creds.Organization, creds.User, creds.Token)
			if err != nil {
				return err
			}
			_, acc, err := o.store.AddAccount(cmd.Context(), resp.Organization, resp.Account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (account %s)\n", acc.Organization, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&preset.Organization, "org", "", "organization whose repositories are listed")
	cmd.Flags().StringVar(&preset.User, "user", "", "registry user")
	cmd.Flags().StringVar(&preset.Token, "token", "", "access token, or @file to read it from a file")
	return cmd
}

// NewLogoutCmd forgets the active account, or every account with --all.
// The server keeps no per-client state beyond the cookies of a single
// process, so there is nothing to end remotely.
func NewLogoutCmd(o *Options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed := 0
			for {
				acc, ok := o.store.Config().ActiveAccount()
				if !ok {
					break
				}
				if _, err := o.store.RemoveAccount(cmd.Context(), acc.ID); err != nil {
					return err
				}
				removed++
				if !all {
					break
				}
			}
			if removed == 0 {
				return client.ErrNoActiveAccount
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d account(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "forget every stored account")
	return cmd
}

// NewAccountsCmd lists the stored accounts.
func NewAccountsCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := uitable.Table{
				Content: "accounts",
				Header: []uitable.Header{
					uitable.NewHeader("ID"),
					uitable.NewHeader("Organization"),
					uitable.NewHeader("Active"),
				},
			}
			for _, acc := range o.store.Config().Accounts {
				active := ""
				if acc.IsActive {
					active = "*"
				}
				table.Rows = append(table.Rows, []uitable.Value{
					uitable.NewValueString(acc.ID),
					uitable.NewValueString(acc.Organization),
					uitable.NewValueString(active),
				})
			}
			table.Print(cmd.OutOrStdout())
			return nil
		},
	}
}

// NewUseCmd switches the active account.
func NewUseCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "use <account-id>",
		Short: "Make an account the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.store.SetActiveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			acc, _ := cfg.ActiveAccount()
			fmt.Fprintf(cmd.OutOrStdout(), "Using %s\n", acc.Organization)
			return nil
		},
	}
}

// NewRemoveCmd forgets one account.
func NewRemoveCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Forget an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.store.RemoveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if acc, ok := cfg.ActiveAccount(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed, now using %s\n", acc.Organization)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Removed, no accounts left")
			}
			return nil
		},
	}
}
