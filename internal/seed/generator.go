// ABOUTME: Sample message generator for seeding the local store and the builder's try panel.
// ABOUTME: Uses OpenAI to write realistic pipeline payloads, falling back to a static set.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
)

// Generator creates sample messages using OpenAI or falls back to static data.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string
}

// NewGenerator creates a generator, loading the API key from .env if available.
func NewGenerator() *Generator {
	g := &Generator{}

	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}

	g.model = os.Getenv("OPENAI_MODEL")
	if g.model == "" {
		g.model = "gpt-5-mini"
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		g.client = openai.NewClient(apiKey)
		g.useAI = true
		log.Printf("OpenAI API key found, generating sample messages with model: %s", g.model)
	} else {
		log.Println("No OPENAI_API_KEY found, using static sample messages")
	}
	return g
}

// Static returns a generator that never calls out.
func Static() *Generator {
	return &Generator{}
}

// Message is one sample payload a stream might carry.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Content is the payload as message text.
func (m Message) Content() string {
	return string(m.Payload)
}

// Messages returns count sample messages. AI failures fall back to static data.
func (g *Generator) Messages(ctx context.Context, count int) []Message {
	if count <= 0 {
		return nil
	}
	if !g.useAI {
		return staticMessages(count)
	}

	log.Printf("Generating %d sample messages via AI...", count)
	msgs, err := g.generateMessages(ctx, count)
	if err != nil {
		log.Printf("AI generation failed, falling back to static data: %v", err)
		return staticMessages(count)
	}
	if len(msgs) < count {
		msgs = append(msgs, staticMessages(count-len(msgs))...)
	}
	return msgs[:count]
}

func (g *Generator) generateMessages(ctx context.Context, count int) ([]Message, error) {
	prompt := fmt.Sprintf(`Generate %d realistic JSON messages flowing through an e-commerce data pipeline. Include a mix of:
- order placed, paid, shipped and refunded events
- inventory level updates
- customer signups and profile changes
- payment gateway webhooks, including a few failures

Return as a JSON array of objects with: topic (one of orders, inventory, customers, payments) and payload (a JSON object).
Payloads should have 3-8 fields with realistic ids, amounts, timestamps (ISO 8601) and nested objects where natural.`, count)

	return callOpenAI[[]Message](ctx, g.client, g.model, prompt)
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return result, nil
}
