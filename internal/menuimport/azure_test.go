package menuimport

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// MockChat is a mock implementation of the Azure chat completions client
type MockChat struct {
	mock.Mock
}

func (m *MockChat) GetChatCompletions(ctx context.Context, body azopenai.ChatCompletionsOptions, options *azopenai.GetChatCompletionsOptions) (azopenai.GetChatCompletionsResponse, error) {
	args := m.Called(ctx, body)
	return args.Get(0).(azopenai.GetChatCompletionsResponse), args.Error(1)
}

func azureReply(content string) azopenai.GetChatCompletionsResponse {
	var resp azopenai.GetChatCompletionsResponse
	resp.Choices = []azopenai.ChatChoice{{Message: &azopenai.ChatResponseMessage{Content: to.Ptr(content)}}}
	return resp
}

func TestAzureModel_ImportsThroughDeployment(t *testing.T) {
	chat := new(MockChat)
	chat.On("GetChatCompletions", mock.Anything, mock.MatchedBy(func(body azopenai.ChatCompletionsOptions) bool {
		return body.DeploymentName != nil && *body.DeploymentName == "menu-gpt" &&
			len(body.Messages) == 1 && *body.Temperature == 0
	})).Return(azureReply(`[{"name": "Mocha", "price": 170}]`), nil)

	model := &AzureModel{client: chat, deployment: "menu-gpt"}
	res, err := NewImporter(model, nil).Import(context.Background(), "outlet-1", "Mocha 170")
	require.NoError(t, err)
	require.Len(t, res.Drafts, 1)
	assert.Equal(t, "Mocha", res.Drafts[0].Item.Name)
	chat.AssertExpectations(t)
}

func TestAzureModel_Errors(t *testing.T) {
	chat := new(MockChat)
	chat.On("GetChatCompletions", mock.Anything, mock.Anything).
		Return(azopenai.GetChatCompletionsResponse{}, errors.New("throttled"))
	model := &AzureModel{client: chat, deployment: "menu-gpt"}

	_, err := model.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, "menu"),
	})
	assert.ErrorContains(t, err, "throttled")

	_, err = model.GenerateContent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewModel(Options{Provider: ProviderAzure, Model: "menu-gpt"})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewModel(Options{Provider: "bard", Model: "x"})
	assert.ErrorContains(t, err, "unknown menu import provider")
}
