package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/grumpyguvner/mailkeys/internal/config"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/spf13/cobra"
)

func NewKeysCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage mail repository keys",
		Long:  `Add, list and remove the keys held in a mail repository's key index.`,
	}

	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for the whole operation")

	cmd.AddCommand(newKeysAddCommand(&timeout))
	cmd.AddCommand(newKeysListCommand(&timeout))
	cmd.AddCommand(newKeysRemoveCommand(&timeout))

	return cmd
}

func newKeysAddCommand(timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "add <repository> <key>...",
		Short: "Add keys to a repository",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			repository, keyArgs := args[0], args[1:]
			return withStore(ctx, func(_ *config.Config, store keys.Store) error {
				if err := keys.NewAsync(store).StoreAll(ctx, repository, keyArgs); err != nil {
					return fmt.Errorf("failed to add keys to %s: %w", repository, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %d key(s) to %s\n", len(keyArgs), repository)
				return nil
			})
		},
	}
}

func newKeysListCommand(timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "list <repository>",
		Short: "List the keys of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			repository := args[0]
			return withStore(ctx, func(_ *config.Config, store keys.Store) error {
				out := cmd.OutOrStdout()
				for key, err := range store.List(ctx, repository) {
					if err != nil {
						return fmt.Errorf("failed to list keys of %s: %w", repository, err)
					}
					fmt.Fprintln(out, key)
				}
				return nil
			})
		},
	}
}

func newKeysRemoveCommand(timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <repository> <key>...",
		Short: "Remove keys from a repository",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			repository, keyArgs := args[0], args[1:]
			return withStore(ctx, func(_ *config.Config, store keys.Store) error {
				if err := keys.NewAsync(store).RemoveAll(ctx, repository, keyArgs); err != nil {
					return fmt.Errorf("failed to remove keys from %s: %w", repository, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d key(s) from %s\n", len(keyArgs), repository)
				return nil
			})
		},
	}
}
