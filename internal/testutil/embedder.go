// Package testutil holds small fakes shared by package tests.
package testutil

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// Embedder is a deterministic ai.Embedder for tests. Each input document
// yields a vector of the configured dimension whose first component is the
// document's position in the request, so tests can tell the vectors apart.
type Embedder struct {
	// Dimension of the produced vectors. Defaults to 3 when zero.
	Dimension int

	// Err, when set, is returned from every Embed call.
	Err error

	// Calls counts Embed invocations.
	Calls int
}

func (e *Embedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dimension
	if dim <= 0 {
		dim = 3
	}
	resp := &ai.EmbedResponse{}
	for i := range req.Input {
		vec := make([]float32, dim)
		vec[0] = float32(i)
		for j := 1; j < dim; j++ {
			vec[j] = 0.1
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func (e *Embedder) Name() string { return "testEmbedder" }

func (e *Embedder) Register(api.Registry) {}
