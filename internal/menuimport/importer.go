// Package menuimport turns free-form menu text into draft menu items using
// a language model. Drafts are never saved here.
package menuimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"cafepos/internal/models"
)

var (
	ErrDisabled   = errors.New("menu import is not configured")
	ErrEmptyInput = errors.New("menu text is empty")
	ErrNoJSON     = errors.New("model response contained no JSON array")
)

const maxInput = 20000

const prompt = `You convert cafe menus into JSON.
Return only a JSON array. Each element has:
  "name" (string), "category" (string), "price" (number),
  "variations" (array of {"name", "price_modifier"}),
  "addons" (array of {"name", "price"}),
  "tags" (array of short lowercase words such as "hot", "iced", "vegan").
Prices are plain numbers without currency symbols. A variation's
price_modifier is the difference to the base price.

Menu:
`

// Generator is the part of an llms.Model the importer needs
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Providers of the menu import model
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Options configure the model client
type Options struct {
	// Provider is openai (any OpenAI-compatible endpoint) or azure
	Provider string
	// Model is the model name, or the deployment name on Azure
	Model string
	// BaseURL overrides the OpenAI endpoint; it is required on Azure
	BaseURL   string
	APIKeyEnv string
}

// NewModel creates the model client named by opts.Provider
func NewModel(opts Options) (Generator, error) {
	if opts.Model == "" {
		return nil, ErrDisabled
	}
	var token string
	if opts.APIKeyEnv != "" {
		token = os.Getenv(opts.APIKeyEnv)
		if token == "" {
			return nil, fmt.Errorf("%s environment variable is required for menu import", opts.APIKeyEnv)
		}
	}

	switch opts.Provider {
	case "", ProviderOpenAI:
	case ProviderAzure:
		return NewAzureModel(opts.BaseURL, token, opts.Model)
	default:
		return nil, fmt.Errorf("unknown menu import provider %q", opts.Provider)
	}

	clientOpts := []openai.Option{openai.WithModel(opts.Model)}
	if token != "" {
		clientOpts = append(clientOpts, openai.WithToken(token))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu import model: %w", err)
	}
	return client, nil
}

type draftVariation struct {
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

type draftAddon struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type draftItem struct {
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Price      decimal.Decimal  `json:"price"`
	Variations []draftVariation `json:"variations"`
	Addons     []draftAddon     `json:"addons"`
	Tags       []string         `json:"tags"`
}

// Draft is a proposed menu item and its category name
type Draft struct {
	Item     models.MenuItem `json:"item"`
	Category string          `json:"category,omitempty"`
}

// Rejection is a proposed item that failed validation
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result of an import
type Result struct {
	Drafts   []Draft     `json:"drafts"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Importer asks the model for menu items
type Importer struct {
	model Generator
	log   *logrus.Entry
}

// NewImporter creates an importer. A nil model disables it.
func NewImporter(model Generator, log *logrus.Entry) *Importer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Importer{model: model, log: log.WithField("component", "menuimport")}
}

// Enabled reports whether a model is configured
func (i *Importer) Enabled() bool {
	return i != nil && i.model != nil
}

// Import converts the text into validated drafts for the outlet
func (i *Importer) Import(ctx context.Context, outletID, text string) (Result, error) {
	if !i.Enabled() {
		return Result{}, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}
	if len(text) > maxInput {
		text = text[:maxInput]
	}

	resp, err := i.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt+text),
	}, llms.WithTemperature(0))
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate menu: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("empty response from menu import model")
	}

	result, err := Parse(outletID, resp.Choices[0].Content)
	if err != nil {
		return Result{}, err
	}
	i.log.WithFields(logrus.Fields{
		"outlet_id": outletID,
		"drafts":    len(result.Drafts),
		"rejected":  len(result.Rejected),
	}).Info("Menu import parsed")
	return result, nil
}

// Parse extracts drafts from a model response
func Parse(outletID, content string) (Result, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return Result{}, ErrNoJSON
	}

	var items []draftItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		return Result{}, fmt.Errorf("failed to decode menu JSON: %w", err)
	}

	var result Result
	for _, d := range items {
		item := models.MenuItem{
			ID:        uuid.NewString(),
			OutletID:  outletID,
			Name:      strings.TrimSpace(d.Name),
			BasePrice: d.Price,
			Available: true,
		}
		for _, tag := range d.Tags {
			if tag = slug(tag); tag != "" {
				item.Tags = append(item.Tags, tag)
			}
		}
		for _, v := range d.Variations {
			item.Variations = append(item.Variations, models.Variation{
				ID:            slug(v.Name),
				Name:          strings.TrimSpace(v.Name),
				PriceModifier: v.PriceModifier,
				RecipeMode:    models.RecipeModeNone,
			})
		}
		for _, a := range d.Addons {
			item.Addons = append(item.Addons, models.Addon{
				ID:    slug(a.Name),
				Name:  strings.TrimSpace(a.Name),
				Price: a.Price,
			})
		}

		if err := models.ValidateMenuItem(&item); err != nil {
			result.Rejected = append(result.Rejected, Rejection{Name: d.Name, Reason: err.Error()})
			continue
		}
		result.Drafts = append(result.Drafts, Draft{Item: item, Category: strings.TrimSpace(d.Category)})
	}
	return result, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
