package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/paywatch/internal/logger"
	"google.golang.org/genai"
)

// MaxMerchantLength bounds the merchant text embedded in a prompt.
const MaxMerchantLength = 120

const suggestTimeout = 10 * time.Second

type categorySuggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// SuggestCategory asks Gemini which of categories fits a transaction at
// merchant. The answer is returned with the casing used in categories.
func (c *Client) SuggestCategory(ctx context.Context, merchant string, categories []string) (string, error) {
	if c.generator == nil {
		return "", errNotInitialized
	}
	merchant = SanitizeForPrompt(merchant, MaxMerchantLength)
	if merchant == "" {
		return "", errors.New("merchant is required")
	}
	if len(categories) == 0 {
		return "", errors.New("no categories available")
	}

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(200),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. Respond with a single JSON object and nothing else."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {
					Type:        genai.TypeString,
					Enum:        categories,
					Description: "The best matching category from the list",
				},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "Confidence between 0 and 1",
				},
			},
			Required: []string{"category", "confidence"},
		},
	}
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: buildPrompt(merchant, categories)}}},
	}

	resp, err := c.generator.GenerateContent(ctx, ModelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return "", errors.New("no response from Gemini")
	}

	jsonText := extractJSON(resp.Text())
	if jsonText == "" {
		return "", errors.New("no JSON found in response")
	}

	var suggestion categorySuggestion
	if err := json.Unmarshal([]byte(jsonText), &suggestion); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w", err)
	}

	for _, cat := range categories {
		if strings.EqualFold(cat, strings.TrimSpace(suggestion.Category)) {
			logger.Log.Debug().
				Str("merchant", logger.SanitizeText(merchant)).
				Str("category", cat).
				Float64("confidence", suggestion.Confidence).
				Msg("Category suggested")
			return cat, nil
		}
	}
	return "", fmt.Errorf("suggested category %q not in available categories", suggestion.Category)
}

func buildPrompt(merchant string, categories []string) string {
	return fmt.Sprintf(`Categorize a card transaction from the merchant "%s".

Available categories:
- %s

Rules:
- Choose the single most appropriate category from the list
- "Streaming" for video and music services such as Netflix or Spotify
- "Software & Cloud" for SaaS, hosting and developer tools
- Use "Others" only when nothing else fits

Return JSON only:
{"category": "exact category name", "confidence": 0.0-1.0}`, merchant, strings.Join(categories, "\n- "))
}

// extractJSON returns the outermost {...} span of text. Gemini occasionally
// prefixes JSON output with prose even in JSON mode.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// SanitizeForPrompt strips characters that could break out of a quoted prompt
// value, collapses whitespace and truncates to maxLength bytes.
func SanitizeForPrompt(input string, maxLength int) string {
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Join(strings.Fields(input), " ")

	if len(input) > maxLength {
		input = strings.TrimSpace(input[:maxLength])
	}
	return input
}
