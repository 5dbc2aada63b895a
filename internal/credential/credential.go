// Package credential resolves provider credential configuration into
// usable authentication material: a static API key, or an OAuth-acquired
// bearer token, each paired with the HTTP header policy it should be sent
// under. LLM provider clients call Resolve before each outbound request
// rather than reading environment variables themselves.
package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dyzdyz010/agentrt/internal/config"
)

// Credential is the resolved authentication material for one request.
type Credential struct {
	// Value is the secret itself (API key, or OAuth access token).
	Value string

	// HeaderName is the HTTP header the credential goes in, e.g.
	// "Authorization" or "x-api-key".
	HeaderName string

	// HeaderPrefix is prepended to Value when building the header value,
	// e.g. "Bearer ". May be empty.
	HeaderPrefix string
}

// HeaderValue renders the credential as it should appear on the wire.
func (c Credential) HeaderValue() string {
	return c.HeaderPrefix + c.Value
}

// Provider resolves a credential, refreshing it if necessary.
type Provider interface {
	Resolve(ctx context.Context) (Credential, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Credential, error)

// Resolve implements Provider.
func (f ProviderFunc) Resolve(ctx context.Context) (Credential, error) {
	return f(ctx)
}

// Registry resolves named credential entries from configuration.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds a Registry from credential configuration, constructing
// one Provider per entry. API key entries read their value lazily (the env
// var may change between calls in tests); OAuth entries get a cached token
// source built once up front.
func NewRegistry(cfg config.CredentialConfig) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(cfg.Providers))}
	for name, entry := range cfg.Providers {
		provider, err := buildProvider(entry)
		if err != nil {
			return nil, fmt.Errorf("credential %q: %w", name, err)
		}
		r.providers[name] = provider
	}
	return r, nil
}

// Resolve looks up a named credential and resolves it. An empty name is not
// valid; callers should default to the provider's own name per
// config.LLMProviderConfig.Credential's documented fallback.
func (r *Registry) Resolve(ctx context.Context, name string) (Credential, error) {
	if r == nil {
		return Credential{}, fmt.Errorf("credential %q: registry not configured", name)
	}
	r.mu.RLock()
	provider, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return Credential{}, fmt.Errorf("credential %q: not configured", name)
	}
	return provider.Resolve(ctx)
}

// Register adds or replaces a provider under name, e.g. for tests.
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[name] = provider
}

func buildProvider(entry config.CredentialEntry) (Provider, error) {
	headerName := strings.TrimSpace(entry.HeaderName)
	if headerName == "" {
		headerName = "Authorization"
	}

	switch strings.ToLower(strings.TrimSpace(entry.Type)) {
	case "", "api_key":
		return newAPIKeyProvider(entry, headerName)
	case "oauth":
		return newOAuthProvider(entry, headerName)
	default:
		return nil, fmt.Errorf("unknown credential type %q", entry.Type)
	}
}

func newAPIKeyProvider(entry config.CredentialEntry, headerName string) (Provider, error) {
	envVar := strings.TrimSpace(entry.APIKeyEnv)
	if envVar == "" {
		return nil, fmt.Errorf("api_key credential requires api_key_env")
	}
	headerPrefix := entry.HeaderPrefix
	return ProviderFunc(func(ctx context.Context) (Credential, error) {
		value := os.Getenv(envVar)
		if value == "" {
			return Credential{}, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return Credential{Value: value, HeaderName: headerName, HeaderPrefix: headerPrefix}, nil
	}), nil
}

func newOAuthProvider(entry config.CredentialEntry, headerName string) (Provider, error) {
	if entry.OAuth == nil {
		return nil, fmt.Errorf("oauth credential requires oauth configuration")
	}
	oauthCfg := entry.OAuth

	clientID := os.Getenv(strings.TrimSpace(oauthCfg.ClientIDEnv))
	clientSecret := os.Getenv(strings.TrimSpace(oauthCfg.ClientSecretEnv))
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("oauth client credentials not set (client_id_env/client_secret_env)")
	}

	ccCfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     strings.TrimSpace(oauthCfg.TokenURL),
		Scopes:       oauthCfg.Scopes,
	}

	headerPrefix := entry.HeaderPrefix
	if headerPrefix == "" {
		headerPrefix = "Bearer "
	}

	var mu sync.Mutex
	var cached *oauth2.Token

	return ProviderFunc(func(ctx context.Context) (Credential, error) {
		mu.Lock()
		defer mu.Unlock()

		if cached != nil && cached.Valid() {
			return Credential{Value: cached.AccessToken, HeaderName: headerName, HeaderPrefix: headerPrefix}, nil
		}

		tokenSource := ccCfg.TokenSource(ctx)
		token, err := tokenSource.Token()
		if err != nil {
			return Credential{}, fmt.Errorf("oauth token exchange: %w", err)
		}
		cached = token
		return Credential{Value: token.AccessToken, HeaderName: headerName, HeaderPrefix: headerPrefix}, nil
	}), nil
}
