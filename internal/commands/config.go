package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/grumpyguvner/mailkeys/internal/config"
	"github.com/spf13/cobra"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and generate key index configuration.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGenerateCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if !showSecrets {
				cfg = cfg.Redacted()
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show sensitive values")

	return cmd
}

func newConfigGenerateCommand() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			token, err := generateToken()
			if err != nil {
				return fmt.Errorf("failed to generate bearer token: %w", err)
			}

			cfg := config.Defaults()
			cfg.BearerToken = token

			if err := cfg.Save(output); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration generated: %s\n", output)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "1. Set the backend and its connection settings")
			fmt.Fprintln(out, "2. Move it to /etc/mailkeys/mailkeys.yaml")
			fmt.Fprintln(out, "3. Run: mailkeys migrate")

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "./mailkeys.yaml", "path of the generated file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
