package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"askmydocs/model"
	"askmydocs/types"
)

const systemPrompt = `You are a helpful assistant that answers questions based on the user's uploaded documents and the ongoing conversation.
Use the provided document context as your primary source of truth.
If the answer is not in the context, say you could not find that information in the documents.
Keep answers short, clear and factual.`

// contextSeparator joins retrieved texts in retrieval order; the
// separator is fixed so the same retrieval always yields the same
// prompt.
const contextSeparator = "\n\n"

// tokenizerModel only selects the BPE vocabulary used for budget
// counting; it does not have to match the generation model.
const tokenizerModel = "gpt-3.5-turbo"

// ContextRetriever supplies ranked context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]types.RetrievalResult, error)
}

// Generator assembles retrieval context and conversation history into
// a model request and dispatches it, either as one batch answer or as
// a cancellable event stream. It never retries; the caller owns retry
// policy.
type Generator struct {
	retriever       ContextRetriever
	model           model.TextGenerator
	maxPromptTokens int
	encoder         *tiktoken.Tiktoken
	logger          *slog.Logger
}

func New(ret ContextRetriever, gen model.TextGenerator, maxPromptTokens int) *Generator {
	if maxPromptTokens <= 0 {
		maxPromptTokens = types.DefaultMaxPromptTokens
	}

	g := &Generator{
		retriever:       ret,
		model:           gen,
		maxPromptTokens: maxPromptTokens,
		logger:          slog.Default().With("component", "agent"),
	}

	enc, err := tiktoken.EncodingForModel(tokenizerModel)
	if err != nil {
		// Counting falls back to an estimate; generation still works.
		g.logger.Warn("tokenizer unavailable, using approximate token counts", "error", err)
	} else {
		g.encoder = enc
	}
	return g
}

// Query answers one question in batch mode. k caps the amount of
// retrieved context; zero means the retriever's default.
func (g *Generator) Query(ctx context.Context, question string, turns []types.ConversationTurn, k int) (*types.QueryResponse, error) {
	results, err := g.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	msgs := g.assemble(question, results, turns)
	answer, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	return &types.QueryResponse{
		Results:   results,
		Answer:    answer,
		Timestamp: time.Now(),
	}, nil
}

// assemble builds the request: system instruction, prior turns oldest
// first, then one user turn holding the joined context and the literal
// question. Context texts are dropped from the tail until the whole
// prompt fits the token budget; the question itself is never cut.
func (g *Generator) assemble(question string, results []types.RetrievalResult, turns []types.ConversationTurn) []types.ConversationTurn {
	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Text
	}

	for {
		msgs := buildMessages(question, contexts, turns)
		if len(contexts) == 0 || g.countTokens(msgs) <= g.maxPromptTokens {
			if dropped := len(results) - len(contexts); dropped > 0 {
				g.logger.Info("context trimmed to fit token budget",
					"dropped", dropped, "budget", g.maxPromptTokens)
			}
			return msgs
		}
		contexts = contexts[:len(contexts)-1]
	}
}

func buildMessages(question string, contexts []string, turns []types.ConversationTurn) []types.ConversationTurn {
	joined := strings.Join(contexts, contextSeparator)
	if joined == "" {
		joined = "empty"
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(joined)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)

	msgs := make([]types.ConversationTurn, 0, len(turns)+2)
	msgs = append(msgs, types.ConversationTurn{Role: types.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, turns...)
	msgs = append(msgs, types.ConversationTurn{Role: types.RoleUser, Content: b.String()})
	return msgs
}

func (g *Generator) countTokens(msgs []types.ConversationTurn) int {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	text := b.String()

	if g.encoder != nil {
		return len(g.encoder.Encode(text, nil, nil))
	}
	// Rough estimate: around four bytes per token.
	return (len(text) + 3) / 4
}
