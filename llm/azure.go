package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAzureAPIVersion is sent when Config.APIVersion is empty.
const DefaultAzureAPIVersion = "2024-12-01-preview"

// azureProvider implements Provider for Azure OpenAI deployments.
// Azure addresses models by deployment name in the URL path, takes the
// key in an api-key header and requires an api-version query parameter.
type azureProvider struct {
	base openAICompatClient
}

// NewAzure creates a provider for an Azure OpenAI resource. cfg.BaseURL is
// the resource endpoint and cfg.Model the deployment name.
func NewAzure(cfg Config) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("azure: base_url (resource endpoint) is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("azure: model (deployment name) is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAzureAPIVersion
	}

	base := newOpenAICompatClientPrefix(cfg, "")
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	deployment := url.PathEscape(cfg.Model)
	query := url.Values{"api-version": {cfg.APIVersion}}.Encode()
	base.urlFor = func(path string) string {
		return endpoint + "/openai/deployments/" + deployment + path + "?" + query
	}
	base.authorize = func(req *http.Request) {
		if cfg.APIKey != "" {
			req.Header.Set("api-key", cfg.APIKey)
		}
	}
	return &azureProvider{base: base}, nil
}

func (p *azureProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	// The deployment already selects the model.
	req.Model = ""
	return p.base.chat(ctx, req)
}

func (p *azureProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
