package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/caiotarifa/notion2sheets/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage encrypted API credentials",
}

var secretsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the key pair that protects stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("N2S_PASSPHRASE") == "" {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}

		if err := secrets.NewVault(cfg.Secrets).Setup(passphrase); err != nil {
			return fmt.Errorf("setting up secrets: %w", err)
		}
		fmt.Printf("Key pair written to %s\n", cfg.Secrets.IdentityPath)
		return nil
	},
}

var secretsSealCmd = &cobra.Command{
	Use:   "seal [FILE]",
	Short: "Encrypt credentials from a TOML file or the environment",
	Long: `Encrypt credentials so sync can run without them in the environment.

FILE is a TOML document with notion_token and google_service_account keys.
Without FILE, NOTION_TOKEN and GOOGLE_SERVICE_ACCOUNT are read from the
environment (or .env). The service account may be raw or base64-encoded JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var creds secrets.Credentials
		if len(args) == 1 {
			creds, err = readCredentialsFile(args[0])
		} else {
			creds, err = secrets.FromEnv()
		}
		if err != nil {
			return err
		}
		if err := creds.Validate(); err != nil {
			return err
		}

		if err := secrets.NewVault(cfg.Secrets).Seal(creds); err != nil {
			return fmt.Errorf("sealing credentials: %w", err)
		}
		fmt.Printf("Credentials sealed to %s\n", cfg.Secrets.SecretsPath)
		return nil
	},
}

func readCredentialsFile(path string) (secrets.Credentials, error) {
	var creds secrets.Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return secrets.Credentials{}, fmt.Errorf("reading %s: %w", path, err)
	}

	account, err := secrets.DecodeServiceAccount(creds.GoogleServiceAccount)
	if err != nil {
		return secrets.Credentials{}, fmt.Errorf("google_service_account: %w", err)
	}
	creds.GoogleServiceAccount = account
	return creds, nil
}

// readPassphrase returns N2S_PASSPHRASE when set and otherwise prompts on
// the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("N2S_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to read the passphrase from; set N2S_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func init() {
	secretsCmd.AddCommand(secretsInitCmd)
	secretsCmd.AddCommand(secretsSealCmd)
}
