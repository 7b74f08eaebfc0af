package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/llm"
)

// DefaultSystemPrompt is Chad's standing instruction set. Grounding
// context, when present, arrives as a second system message.
const DefaultSystemPrompt = `You are Chad, the assistant for Empire Labs (empirelabs.com.au). ` +
	`You help visitors with questions about services, automation, dashboards, and grants/R&D support. ` +
	`Answer using the provided internal knowledge when it is relevant. ` +
	`If you do not know something, say so instead of inventing details. Keep replies concise and practical.`

const contextPreamble = "Internal knowledge relevant to the user's question:\n\n"

// PromptBuilder assembles the bounded prompt sent to the model:
// system instructions, retrieved context within a token budget, recent
// history, and the new user message.
type PromptBuilder struct {
	systemPrompt string
	tokenBudget  int

	countOnce sync.Once
	count     func(string) int
}

func NewPromptBuilder(systemPrompt string, contextTokenBudget int) *PromptBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &PromptBuilder{systemPrompt: systemPrompt, tokenBudget: contextTokenBudget}
}

// Build produces the message sequence for one completion call.
func (b *PromptBuilder) Build(history []domain.Turn, retrieved []domain.RetrievedChunk, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: "system", Content: b.systemPrompt})

	if pack := b.contextPack(retrieved); pack != "" {
		messages = append(messages, llm.Message{Role: "system", Content: contextPreamble + pack})
	}

	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages
}

// contextPack renders retrieved chunks as source-tagged blocks,
// keeping whole chunks while they fit the token budget. The first
// chunk is truncated rather than dropped so a single oversized passage
// cannot empty the context.
func (b *PromptBuilder) contextPack(retrieved []domain.RetrievedChunk) string {
	if len(retrieved) == 0 {
		return ""
	}

	var (
		blocks []string
		used   int
	)
	for i, res := range retrieved {
		block := fmt.Sprintf("[source: %s]\n%s", res.Chunk.Source, strings.TrimSpace(res.Chunk.Content))
		tokens := b.countTokens(block)

		if b.tokenBudget > 0 && used+tokens > b.tokenBudget {
			if i == 0 {
				blocks = append(blocks, b.truncateToBudget(block))
			}
			break
		}

		blocks = append(blocks, block)
		used += tokens
	}

	return strings.Join(blocks, "\n\n")
}

func (b *PromptBuilder) truncateToBudget(block string) string {
	runes := []rune(block)
	// Binary search the longest prefix within budget.
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.countTokens(string(runes[:mid])) <= b.tokenBudget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimSpace(string(runes[:lo]))
}

// countTokens uses the cl100k_base encoding when available. Local
// models tokenize differently anyway; when the encoding cannot be
// loaded (offline start, no cached BPE), a chars/4 estimate keeps the
// budget meaningful.
func (b *PromptBuilder) countTokens(text string) int {
	b.countOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			b.count = func(s string) int { return len(enc.Encode(s, nil, nil)) }
			return
		}
		b.count = func(s string) int { return (len(s) + 3) / 4 }
	})
	return b.count(text)
}
