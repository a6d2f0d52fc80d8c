package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/hairizuanbinnoorazman/security-e2e/credentials"
	"github.com/spf13/cobra"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the sealed secrets file",
	}

	cmd.AddCommand(newSecretsSealCmd())
	cmd.AddCommand(newSecretsRolesCmd())
	return cmd
}

func newSecretsSealCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "seal [roles...]",
		Short: "Seal role secrets read from the environment into a file",
		Long: fmt.Sprintf("Reads each role's secret from %s<ROLE>_SECRET and writes them, encrypted with %s, to the output file. "+
			"Without arguments every configured role with a secret in the environment is sealed.", credentials.EnvPrefix, PassphraseEnv),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv(PassphraseEnv)
			if passphrase == "" {
				return fmt.Errorf("%s is required", PassphraseEnv)
			}

			roles := args
			if len(roles) == 0 {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				for name := range cfg.Credentials.Roles {
					roles = append(roles, name)
				}
				sort.Strings(roles)
			}

			env := credentials.NewEnv()
			secrets := credentials.Secrets{}
			for _, role := range roles {
				secret, ok := env.Secret(role)
				if !ok {
					if len(args) > 0 {
						return fmt.Errorf("%s is not set", credentials.EnvKey(role))
					}
					continue
				}
				secrets[role] = secret
			}
			if len(secrets) == 0 {
				return fmt.Errorf("no role secrets found in the environment")
			}

			if err := ensureParent(out); err != nil {
				return err
			}
			if err := credentials.WriteSealed(out, passphrase, secrets); err != nil {
				return err
			}
			printMessage(fmt.Sprintf("Sealed %d secrets into %s", len(secrets), out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "secrets.sealed", "Output file")
	return cmd
}

func newSecretsRolesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List the roles held by a sealed secrets file",
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv(PassphraseEnv)
			if passphrase == "" {
				return fmt.Errorf("%s is required", PassphraseEnv)
			}
			secrets, err := credentials.ReadSealed(file, passphrase)
			if err != nil {
				return err
			}

			if flagJSON {
				printJSON(secrets.Roles())
				return nil
			}
			for _, role := range secrets.Roles() {
				printMessage(role)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "secrets.sealed", "Sealed secrets file")
	return cmd
}
