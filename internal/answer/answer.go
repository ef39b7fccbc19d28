// Package answer serves grounded questions over the normativa dataset. A
// question is embedded, the nearest normas are retrieved from the warehouse,
// and the model answers from that context alone.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/warehouse"
)

// ErrNoContext reports that no normas were similar enough to ground an
// answer, usually because the dataset is empty.
var ErrNoContext = errors.New("answer: no relevant normas found")

const systemPrompt = `Sos un asistente especializado en normativa nacional argentina.
Respondé la pregunta del usuario usando exclusivamente las normas provistas como contexto.
Citá cada norma que uses por su número de identificación (id_norma).
Si el contexto no alcanza para responder, decilo explícitamente en lugar de inventar.`

// Searcher retrieves the normas closest to a query.
type Searcher interface {
	SearchSimilar(ctx context.Context, query string, limit int) ([]warehouse.Hit, error)
}

// Generator produces a completion for a system and user prompt pair.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Answer is a grounded response with the normas that informed it.
type Answer struct {
	Text    string
	Sources []warehouse.Hit
}

// Service answers questions using retrieval plus generation.
type Service struct {
	searcher  Searcher
	generator Generator
	topK      int
	logger    log.Logger
}

func NewService(searcher Searcher, generator Generator, topK int, logger log.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		searcher:  searcher,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask retrieves the normas nearest to question and generates an answer
// grounded on them.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	hits, err := s.searcher.SearchSimilar(ctx, question, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrNoContext
	}
	s.logger.Debug("context retrieved", "question", question, "normas", len(hits))

	text, err := s.generator.Generate(ctx, systemPrompt, buildPrompt(question, hits))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{Text: text, Sources: hits}, nil
}

// buildPrompt lays the retrieved normas out as numbered context blocks
// followed by the question.
func buildPrompt(question string, hits []warehouse.Hit) string {
	var b strings.Builder
	b.WriteString("Contexto:\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] id_norma %d", i+1, h.IDNorma)
		if h.TipoNorma != "" {
			b.WriteString(" (" + strings.TrimSpace(h.TipoNorma+" "+h.NumeroNorma) + ")")
		}
		b.WriteString("\n")
		b.WriteString(h.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Pregunta: ")
	b.WriteString(question)
	return b.String()
}
