package answer

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitGenerator adapts a genkit instance to the Generator interface.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

func NewGenkitGenerator(g *genkit.Genkit, model string) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model}
}

func (g *GenkitGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}
