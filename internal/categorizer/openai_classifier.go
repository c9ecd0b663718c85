package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// systemPrompt mirrors the structure of original_source's
// unified_tagging_prompt.md: a closed tag registry, a request for
// 1-2 tags ranked by relevance, and a numeric confidence estimate.
const systemPrompt = `You are a classifier that assigns 1-2 tags from a
fixed registry to a subreddit, based on its name, subscriber count, and
average engagement. Respond with a JSON object: {"tags": ["..."],
"confidence": 0.0-1.0}. Pick only tags you are confident apply; never
invent a tag outside the registry.`

// OpenAIClassifier adapts the categorizer's Classifier function type to
// an OpenAI chat completion call, grounded on original_source's
// instagram-ai-tagger (a unified prompt plus a JSON-shaped response)
// translated from Python's openai client to sashabaranov/go-openai.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: openai.NewClient(apiKey), model: model}
}

// Classify satisfies the Classifier function type via its bound method
// value, so callers wire it with classifier.Classify rather than a
// free function.
func (c *OpenAIClassifier) Classify(ctx context.Context, meta SubredditMetadata) (Classification, error) {
	registry := strings.Join(models.TagNames(), ", ")
	userPrompt := fmt.Sprintf(
		"Registry: %s\n\nSubreddit: r/%s (%s)\nSubscribers: %d\nAvg upvotes/post: %.1f\nTop posts: %s",
		registry, meta.Name, meta.DisplayName, meta.Subscribers, meta.AvgUpvotesPerPost,
		strings.Join(meta.TopPostTitles, " | "),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.1,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("openai classifier: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("openai classifier: empty response")
	}

	var parsed struct {
		Tags       []string `json:"tags"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Classification{}, fmt.Errorf("openai classifier: failed to parse response: %w", err)
	}

	valid := ValidateTags(parsed.Tags)
	return Classification{
		Tags:            valid,
		PrimaryCategory: DerivePrimaryCategory(valid),
		Confidence:      parsed.Confidence,
	}, nil
}
