package services

import (
	"errors"
	"fmt"

	"github.com/tlord101/VanTutor-sub000/config"

	openai "github.com/sashabaranov/go-openai"
)

// newLLMClient resolves a model name to its configured provider and returns a
// client bound to that provider's endpoint. Providers are OpenAI-compatible;
// which one serves a model is decided entirely by configuration.
func newLLMClient(model string) (*openai.Client, error) {
	providerKey, modelExists := config.AppConfig.LLMModels[model]
	if !modelExists {
		return nil, fmt.Errorf("model '%s' is not configured", model)
	}
	providerConfig, providerExists := config.AppConfig.LLMProviders[providerKey]
	if !providerExists {
		return nil, fmt.Errorf("provider '%s' for model '%s' is not configured", providerKey, model)
	}
	if providerConfig.APIKey == "" || providerConfig.BaseURL == "" {
		return nil, errors.New("provider API key or base URL is empty")
	}

	clientConfig := openai.DefaultConfig(providerConfig.APIKey)
	clientConfig.BaseURL = providerConfig.BaseURL
	return openai.NewClientWithConfig(clientConfig), nil
}
