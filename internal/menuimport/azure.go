package menuimport

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/tmc/langchaingo/llms"
)

const azureMaxTokens = 4000

type chatCompleter interface {
	GetChatCompletions(ctx context.Context, body azopenai.ChatCompletionsOptions, options *azopenai.GetChatCompletionsOptions) (azopenai.GetChatCompletionsResponse, error)
}

// AzureModel generates menu drafts through an Azure OpenAI deployment
type AzureModel struct {
	client     chatCompleter
	deployment string
}

// NewAzureModel connects to the deployment at endpoint with an API key
func NewAzureModel(endpoint, apiKey, deployment string) (*AzureModel, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, fmt.Errorf("azure menu import needs an endpoint, an API key and a deployment")
	}
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}
	return &AzureModel{client: client, deployment: deployment}, nil
}

// GenerateContent sends every text part as a user message
func (m *AzureModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	maxTokens := int32(azureMaxTokens)
	if opts.MaxTokens > 0 {
		maxTokens = int32(opts.MaxTokens)
	}

	chat := make([]azopenai.ChatRequestMessageClassification, 0, len(messages))
	for _, msg := range messages {
		var text strings.Builder
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				text.WriteString(tc.Text)
			}
		}
		if text.Len() == 0 {
			continue
		}
		chat = append(chat, &azopenai.ChatRequestUserMessage{
			Content: azopenai.NewChatRequestUserMessageContent(text.String()),
		})
	}
	if len(chat) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := m.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		Messages:       chat,
		MaxTokens:      to.Ptr(maxTokens),
		Temperature:    to.Ptr(float32(opts.Temperature)),
		DeploymentName: to.Ptr(m.deployment),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("Azure OpenAI completion failed: %w", err)
	}

	out := &llms.ContentResponse{}
	for _, choice := range resp.Choices {
		if choice.Message == nil || choice.Message.Content == nil {
			continue
		}
		out.Choices = append(out.Choices, &llms.ContentChoice{Content: *choice.Message.Content})
	}
	return out, nil
}
