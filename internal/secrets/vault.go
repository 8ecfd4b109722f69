// Package secrets stores API credentials encrypted at rest with age.
//
// An X25519 identity is generated once and kept encrypted with the user's
// passphrase (age scrypt). Credentials are sealed to the identity's public
// key, so sealing never needs the passphrase and unsealing always does.
package secrets

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/BurntSushi/toml"

	"github.com/caiotarifa/notion2sheets/internal/config"
)

// ErrNotConfigured is returned when the vault has no identity or no sealed
// credentials yet.
var ErrNotConfigured = errors.New("secrets vault is not configured")

// Credentials are the secrets needed to talk to Notion and Google Sheets.
type Credentials struct {
	NotionToken string `toml:"notion_token"`
	// GoogleServiceAccount is the service account key file, as JSON.
	GoogleServiceAccount string `toml:"google_service_account"`
}

// Merge fills empty fields of c from other.
func (c Credentials) Merge(other Credentials) Credentials {
	if c.NotionToken == "" {
		c.NotionToken = other.NotionToken
	}
	if c.GoogleServiceAccount == "" {
		c.GoogleServiceAccount = other.GoogleServiceAccount
	}
	return c
}

// Complete reports whether every credential is present.
func (c Credentials) Complete() bool {
	return c.NotionToken != "" && c.GoogleServiceAccount != ""
}

// Validate checks that every credential is present and the service
// account is well-formed JSON.
func (c Credentials) Validate() error {
	if c.NotionToken == "" {
		return errors.New("notion token is missing (set NOTION_TOKEN or run 'notion2sheets secrets seal')")
	}
	if c.GoogleServiceAccount == "" {
		return errors.New("google service account is missing (set GOOGLE_SERVICE_ACCOUNT or run 'notion2sheets secrets seal')")
	}
	if !json.Valid([]byte(c.GoogleServiceAccount)) {
		return errors.New("google service account is not valid JSON")
	}
	return nil
}

// FromEnv reads NOTION_TOKEN and GOOGLE_SERVICE_ACCOUNT. The service
// account may be base64-encoded or raw JSON.
func FromEnv() (Credentials, error) {
	creds := Credentials{NotionToken: strings.TrimSpace(os.Getenv("NOTION_TOKEN"))}

	account, err := DecodeServiceAccount(os.Getenv("GOOGLE_SERVICE_ACCOUNT"))
	if err != nil {
		return Credentials{}, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT: %w", err)
	}
	creds.GoogleServiceAccount = account
	return creds, nil
}

// DecodeServiceAccount accepts a service account key as raw JSON or
// base64-encoded JSON and returns the JSON. An empty value is returned as is.
func DecodeServiceAccount(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "{") {
		return value, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}
	if !json.Valid(decoded) {
		return "", errors.New("decoded value is not JSON")
	}
	return string(decoded), nil
}

// Vault seals and unseals Credentials.
type Vault struct {
	identityPath  string
	recipientPath string
	secretsPath   string
}

// NewVault creates a Vault from configuration.
func NewVault(cfg config.SecretsConfig) *Vault {
	return &Vault{
		identityPath:  cfg.IdentityPath,
		recipientPath: cfg.RecipientPath,
		secretsPath:   cfg.SecretsPath,
	}
}

// HasIdentity reports whether Setup has been run.
func (v *Vault) HasIdentity() bool {
	return fileExists(v.identityPath) && fileExists(v.recipientPath)
}

// IsConfigured reports whether credentials have been sealed.
func (v *Vault) IsConfigured() bool {
	return v.HasIdentity() && fileExists(v.secretsPath)
}

// Setup generates a new identity, storing the public key in plaintext and
// the private key encrypted with passphrase. It refuses to overwrite an
// existing identity.
func (v *Vault) Setup(passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	if v.HasIdentity() {
		return fmt.Errorf("identity already exists at %s", v.identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, path := range []string{v.identityPath, v.recipientPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(v.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if err := encryptToFile(v.identityPath, recipient, []byte(identity.String()+"\n")); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// Seal encrypts creds to the vault's public key, replacing any previously
// sealed credentials.
func (v *Vault) Seal(creds Credentials) error {
	if !v.HasIdentity() {
		return ErrNotConfigured
	}

	recipient, err := v.loadRecipient()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.secretsPath), 0700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	if err := encryptToFile(v.secretsPath, recipient, buf.Bytes()); err != nil {
		return fmt.Errorf("sealing credentials: %w", err)
	}
	return nil
}

// Unseal decrypts the private key with passphrase and returns the sealed
// credentials.
func (v *Vault) Unseal(passphrase string) (Credentials, error) {
	if !v.IsConfigured() {
		return Credentials{}, ErrNotConfigured
	}

	identity, err := v.unlock(passphrase)
	if err != nil {
		return Credentials{}, err
	}

	f, err := os.Open(v.secretsPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("opening sealed credentials: %w", err)
	}
	defer f.Close()

	r, err := age.Decrypt(f, identity)
	if err != nil {
		return Credentials{}, fmt.Errorf("decrypting credentials: %w", err)
	}

	var creds Credentials
	if _, err := toml.NewDecoder(r).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}

func (v *Vault) unlock(passphrase string) (age.Identity, error) {
	data, err := os.ReadFile(v.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key (wrong passphrase?): %w", err)
	}

	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, errors.New("no identities found in private key")
	}
	return identities[0], nil
}

func (v *Vault) loadRecipient() (age.Recipient, error) {
	data, err := os.ReadFile(v.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, errors.New("no recipients found in public key file")
	}
	return recipients[0], nil
}

func encryptToFile(path string, recipient age.Recipient, plaintext []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := age.Encrypt(f, recipient)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(plaintext)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
