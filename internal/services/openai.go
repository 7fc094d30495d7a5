package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"qatar-events-collector/internal/models"
)

// maxExtractionContent caps how much page markdown is sent per extraction
// request. Detail pages rarely exceed this; listing pages with long footers
// do.
const maxExtractionContent = 50000

// LLMClient handles event extraction and cultural filtering using OpenAI.
type LLMClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(apiKey, model string) *LLMClient {
	return &LLMClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: 0.1,
		maxTokens:   4000,
	}
}

// ExtractEvents extracts structured event records from detail-page
// markdown. Records come back loosely typed; canonicalization happens in a
// later stage. A response that is not a JSON array is logged and yields an
// empty slice rather than an error, so one bad page never aborts a run.
func (c *LLMClient) ExtractEvents(ctx context.Context, content, sourceName string) ([]map[string]interface{}, error) {
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}
	if len(content) > maxExtractionContent {
		content = content[:maxExtractionContent]
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildExtractionPrompt(sourceName),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Content to analyze:\n---\n" + content + "\n---",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices from OpenAI")
	}

	cleaned := cleanJSONResponse(resp.Choices[0].Message.Content)

	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &records); err != nil {
		log.Printf("Extraction response for %s is not a JSON array, skipping page: %v", sourceName, err)
		return nil, nil
	}
	return records, nil
}

// buildExtractionPrompt creates the system prompt for event extraction from
// one source's detail pages.
func buildExtractionPrompt(sourceName string) string {
	return fmt.Sprintf(`Based on the following scraped content from a %s event page, extract the event details and return them in a JSON array format.

The event should have these exact fields:
- name: The event title/name
- date: The event date(s) in format "YYYY-MM-DD" or "YYYY-MM-DD to YYYY-MM-DD" for multi-day events
- time: The event time(s) in format "HH:MM AM/PM" or similar
- locationName: The event venue/location name
- locationLat: Set to null initially (will be populated with latitude coordinates)
- locationLng: Set to null initially (will be populated with longitude coordinates)
- description: A brief description of the event
- category: The event category (cultural, entertainment, sports, food, education, etc.)
- website: The event organizer's original website URL from the direct link button (not the %s page)
- image: The URL of the main event image/poster (extract from img tags, look for event-specific images, not logos or icons)

IMPORTANT: For the description field, include detailed location information such as:
- Full venue address
- Contact phone numbers
- Any specific location details

For the image field:
- Look for images that represent the event itself (posters, banners, promotional images)
- Ignore logos, icons, social media icons, and advertisement images
- If no event-specific image is found, set to null

Important: Look for a button or link that goes directly to the event organizer's official website.
Do NOT use the %s event page URL. If no direct link to the official website is found, set website to null.

IMPORTANT: Preserve the original date and time text exactly as provided. These will be converted to Unix timestamps later.
Do not modify or strip any time specification details from the description field.

Return ONLY valid JSON array without any additional text or formatting.`, sourceName, sourceName, sourceName)
}

// FilterEvents removes events unsuitable for the Qatari audience and events
// that have already passed, judged by the model in batches. Events come back
// with all fields intact. A batch whose response cannot be parsed is dropped
// with a log line; remaining batches still run. The one second pause between
// batches keeps request rates polite.
func (c *LLMClient) FilterEvents(ctx context.Context, events []models.Event, batchSize int) ([]models.Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	if batchSize <= 0 {
		batchSize = 20
	}

	var kept []models.Event
	numBatches := (len(events) + batchSize - 1) / batchSize

	for i := 0; i < len(events); i += batchSize {
		if err := ctx.Err(); err != nil {
			return kept, err
		}

		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[i:end]
		batchNum := i/batchSize + 1

		filtered, err := c.filterBatch(ctx, batch)
		if err != nil {
			log.Printf("Batch %d/%d: filtering failed, dropping batch: %v", batchNum, numBatches, err)
		} else {
			kept = append(kept, filtered...)
			log.Printf("Batch %d/%d: %d of %d events passed the filter", batchNum, numBatches, len(filtered), len(batch))
		}

		if end < len(events) {
			select {
			case <-ctx.Done():
				return kept, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	log.Printf("Cultural filter kept %d of %d events", len(kept), len(events))
	return kept, nil
}

func (c *LLMClient) filterBatch(ctx context.Context, batch []models.Event) ([]models.Event, error) {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode filter batch: %w", err)
	}

	prompt := fmt.Sprintf(`You are a cultural content filter for events in Qatar. Your task is to review the following events and filter out:
1. Music concerts (any live music performances).
2. Bar/nightclub events (any events at bars, nightclubs, or venues primarily serving alcohol)
3. Expired events (events that have already occurred - today's date is %s)
4. Events that are related to BTS or any other Bands or Artists.

For each event, determine if it should be included or excluded based on the criteria above.

IMPORTANT: Return ONLY a JSON array containing the events that SHOULD be included (not filtered out).
Each event must maintain all its original fields exactly as they appear in the input.

DO NOT add or remove any fields from the events. Just return the events that pass the filter.

Events to filter:
%s

Please return ONLY valid JSON without any additional text or formatting.`, time.Now().Format("2006-01-02"), batchJSON)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai filter request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices from OpenAI")
	}

	cleaned := cleanJSONResponse(resp.Choices[0].Message.Content)

	var filtered []models.Event
	if err := json.Unmarshal([]byte(cleaned), &filtered); err != nil {
		return nil, fmt.Errorf("parse filter response: %w", err)
	}

	// The model occasionally invents or mangles records; keep only those
	// that still identify an event and a schedule.
	valid := make([]models.Event, 0, len(filtered))
	for _, event := range filtered {
		if event.Name == "" {
			log.Printf("Skipping filtered event with no name")
			continue
		}
		if event.Date == "" && !event.HasStartTimestamp() {
			log.Printf("Skipping filtered event missing both date and startTimestamp: %s", event.Name)
			continue
		}
		valid = append(valid, event)
	}
	return valid, nil
}

// cleanJSONResponse removes markdown code blocks and other formatting from
// a model response.
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}
