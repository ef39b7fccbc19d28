package warehouse

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Hit is one similarity search result joined with the master row's metadata.
type Hit struct {
	IDNorma        int64
	TipoNorma      string
	NumeroNorma    string
	TituloResumido string
	TextoResumido  string
	Content        string
	Distance       float64
}

// SearchSimilar embeds the query and returns the limit closest normas by
// cosine distance, nearest first.
func (w *Warehouse) SearchSimilar(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}

	resp, err := w.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}
	vec := pgvector.NewVector(resp.Embeddings[0].Embedding)

	const q = `
		SELECT e.id_norma,
		       COALESCE(m.tipo_norma, ''),
		       COALESCE(m.numero_norma, ''),
		       COALESCE(m.titulo_resumido, ''),
		       COALESCE(m.texto_resumido, ''),
		       e.content,
		       e.embedding <=> $1 AS distance
		FROM master_embeddings e
		LEFT JOIN normas_master m ON m.id_norma = e.id_norma
		ORDER BY distance
		LIMIT $2`

	rows, err := w.db.Query(ctx, q, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.IDNorma, &h.TipoNorma, &h.NumeroNorma,
			&h.TituloResumido, &h.TextoResumido, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}
