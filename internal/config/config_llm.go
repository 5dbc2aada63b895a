package config

// LLMConfig configures the provider(s) available to the Agent Loop. Exactly
// one of Providers is selected per agent via Agent.Provider; providers speak
// one of three vendor-neutral wire shapes ("anthropic-style", "openai-style",
// "google-style").
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// FallbackChain specifies provider IDs to try, in order, if the default
	// provider's request fails with a retryable error.
	FallbackChain []string `yaml:"fallback_chain"`
}

// LLMProviderConfig configures a single named provider entry.
type LLMProviderConfig struct {
	// Kind selects the wire shape: "anthropic-style", "openai-style", or
	// "google-style".
	Kind string `yaml:"kind"`

	// Credential selects a named entry from CredentialConfig.Providers.
	// When empty, Credential defaults to the provider's own name.
	Credential string `yaml:"credential"`

	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
}

// CredentialConfig configures how API keys and OAuth-style bearer tokens are
// resolved for each provider, per the credential provider contract.
type CredentialConfig struct {
	Providers map[string]CredentialEntry `yaml:"providers"`
}

// CredentialEntry describes one provider's credential material. Exactly one
// of APIKey or OAuth should be set for a given entry.
type CredentialEntry struct {
	// Type is "api_key" or "oauth".
	Type string `yaml:"type"`

	// APIKeyEnv names an environment variable holding a static API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// OAuth configures OAuth-style bearer token acquisition.
	OAuth *OAuthCredentialConfig `yaml:"oauth,omitempty"`

	// HeaderName overrides the HTTP header the credential is sent in
	// (default "Authorization"). Some vendors expect a custom header
	// ("x-api-key") instead of a bearer-token Authorization header.
	HeaderName string `yaml:"header_name"`

	// HeaderPrefix is prepended to the credential value in the header
	// (e.g. "Bearer "). Empty means no prefix.
	HeaderPrefix string `yaml:"header_prefix"`
}

// OAuthCredentialConfig configures OAuth2 client-credentials or
// refresh-token based bearer token acquisition.
type OAuthCredentialConfig struct {
	TokenURL         string   `yaml:"token_url"`
	ClientIDEnv      string   `yaml:"client_id_env"`
	ClientSecretEnv  string   `yaml:"client_secret_env"`
	RefreshTokenEnv  string   `yaml:"refresh_token_env"`
	Scopes           []string `yaml:"scopes"`
}
