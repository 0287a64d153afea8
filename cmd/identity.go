package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the staff identity stamped on every lead",
}

var identitySetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set the staff member using this device",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		name := strings.Join(args, " ")
		if err := st.SaveIdentity(ctx, name); err != nil {
			return eris.Wrap(err, "identity set")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning as %s\n", strings.TrimSpace(name))
		return nil
	},
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current staff identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		name, err := st.LoadIdentity(ctx)
		if err != nil {
			return eris.Wrap(err, "identity show")
		}
		if name == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "No staff identity set. Run: leadscan identity set <name>")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func init() {
	identityCmd.AddCommand(identitySetCmd, identityShowCmd)
	rootCmd.AddCommand(identityCmd)
}
