// Package vault loads exchange credentials from HashiCorp Vault so
// they can be kept out of config files and the process environment.
package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"crypto-ai-trader/config"
)

// Credentials are the exchange API credentials stored under the
// configured KV v2 secret path.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	IsTestnet bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault client.
type Client struct {
	client *api.Client
	cfg    config.VaultConfig
}

// NewClient connects to Vault with the configured address and token.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, cfg: cfg}, nil
}

// LoadCredentials reads the exchange credentials from the KV v2 mount.
func (c *Client) LoadCredentials(ctx context.Context) (*Credentials, error) {
	path := fmt.Sprintf("%s/data/%s", c.cfg.MountPath, c.cfg.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", path)
	}

	creds := &Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
		IsTestnet: getBool(data, "is_testnet"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("incomplete credentials at %s", path)
	}
	return creds, nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
