package provider

import "fmt"

// Settings is the persisted per-profile provider configuration (spec §6's
// "Configuration options": provider_id, credentials, plus base URL for
// variants that need one).
type Settings struct {
	ProviderID string
	BaseURL    string
	APIKey     string
	Label      string
}

// New builds the concrete Provider for a profile's configured provider_id.
// The six ids map onto four variants, a closed set per spec §9 ("Model them as a closed set of
// variants").
func New(settings Settings) (Provider, error) {
	switch settings.ProviderID {
	case "local":
		return NewLocalProvider(LocalConfig{Host: settings.BaseURL}), nil
	case "openai", "groq", "together":
		return NewOpenAICompatProvider(OpenAICompatConfig{
			ProviderID: settings.ProviderID,
			Label:      settings.Label,
			BaseURL:    settings.BaseURL,
			APIKey:     settings.APIKey,
		}), nil
	case "anthropic":
		return NewNativeContentProvider(NativeContentConfig{
			ProviderID:    settings.ProviderID,
			Label:         settings.Label,
			BaseURL:       settings.BaseURL,
			APIKey:        settings.APIKey,
			APIKeyHeader:  "x-api-key",
			VersionHeader: "anthropic-version",
			APIVersion:    "2023-06-01",
		}), nil
	case "perplexity":
		return NewSearchAugmentedProvider(SearchAugmentedConfig{
			ProviderID: settings.ProviderID,
			Label:      settings.Label,
			BaseURL:    settings.BaseURL,
			APIKey:     settings.APIKey,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider_id %q", settings.ProviderID)
	}
}
