// Package provider implements mailbox provider adapters and factory.
package provider

import (
	"context"
	"fmt"
	"os"

	"intake_server/adapter/out/provider/gmail"
	"intake_server/adapter/out/provider/graph"
	"intake_server/core/port/out"
)

// =============================================================================
// Provider Factory
// =============================================================================

// GraphConfig holds the Azure AD application registration.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// GmailConfig holds the Google service account setup.
type GmailConfig struct {
	// CredentialsFile is the path to the service-account key JSON. The
	// account needs domain-wide delegation for the Gmail modify scope.
	CredentialsFile string
}

// FactoryConfig holds all provider configurations.
type FactoryConfig struct {
	Graph *GraphConfig
	Gmail *GmailConfig
}

// Factory creates mailbox providers based on provider type.
type Factory struct {
	graphConfig *GraphConfig
	gmailConfig *GmailConfig
}

var _ out.ProviderFactory = (*Factory)(nil)

// NewFactory creates a new provider factory.
func NewFactory(cfg *FactoryConfig) *Factory {
	return &Factory{
		graphConfig: cfg.Graph,
		gmailConfig: cfg.Gmail,
	}
}

// CreateProvider creates a provider for the given type.
func (f *Factory) CreateProvider(ctx context.Context, providerType string) (out.MailboxProvider, error) {
	switch providerType {
	case "graph", "outlook", "microsoft":
		return f.createGraphProvider(ctx)
	case "gmail", "google":
		return f.createGmailProvider()
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

func (f *Factory) createGraphProvider(ctx context.Context) (out.MailboxProvider, error) {
	if f.graphConfig == nil {
		return nil, fmt.Errorf("graph config not set")
	}

	return graph.NewProvider(ctx, &graph.Config{
		TenantID:     f.graphConfig.TenantID,
		ClientID:     f.graphConfig.ClientID,
		ClientSecret: f.graphConfig.ClientSecret,
	})
}

func (f *Factory) createGmailProvider() (out.MailboxProvider, error) {
	if f.gmailConfig == nil {
		return nil, fmt.Errorf("gmail config not set")
	}

	creds, err := os.ReadFile(f.gmailConfig.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail credentials: %w", err)
	}
	return gmail.NewProvider(creds)
}
