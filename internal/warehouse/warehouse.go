// Package warehouse persists the normativa dataset in PostgreSQL and keeps a
// pgvector embedding table in sync with it.
//
// Three tables are involved. normas_master holds the full deduplicated
// dataset and is rebuilt from the master file on every run. normas_staging
// accumulates the rows of the current run only. master_embeddings carries one
// vector per norma and is updated incrementally from staging, so embeddings
// are generated once per norma rather than once per run.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/norma"
)

// DB is the slice of pgxpool.Pool the warehouse needs. Tests supply fakes.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// embedBatchSize bounds the documents sent per embedding request.
const embedBatchSize = 100

var normaColumns = []string{
	"id_norma", "tipo_norma", "numero_norma", "clase_norma",
	"organismo_origen", "fecha_sancion", "numero_boletin", "fecha_boletin",
	"pagina_boletin", "titulo_resumido", "titulo_sumario", "texto_resumido",
	"observaciones", "texto_original", "texto_actualizado",
	"modificada_por", "modifica_a",
}

// Warehouse loads records and maintains embeddings. It is safe for
// concurrent use as long as the underlying pool is.
type Warehouse struct {
	db       DB
	embedder ai.Embedder
	logger   log.Logger
}

func New(db DB, embedder ai.Embedder, logger log.Logger) *Warehouse {
	return &Warehouse{db: db, embedder: embedder, logger: logger}
}

// ReplaceMaster swaps the full contents of normas_master for records. The
// truncate and reload happen in one transaction, so readers always see
// either the previous dataset or the new one.
func (w *Warehouse) ReplaceMaster(ctx context.Context, records []norma.Record) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning master replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE normas_master"); err != nil {
		return fmt.Errorf("truncating master: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"normas_master"}, normaColumns, copySource(records)); err != nil {
		return fmt.Errorf("loading master: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing master replace: %w", err)
	}

	w.logger.Info("master table replaced", "rows", len(records))
	return nil
}

// AppendStaging adds the run's records to normas_staging.
func (w *Warehouse) AppendStaging(ctx context.Context, records []norma.Record) error {
	if len(records) == 0 {
		return nil
	}
	n, err := w.db.CopyFrom(ctx, pgx.Identifier{"normas_staging"}, normaColumns, copySource(records))
	if err != nil {
		return fmt.Errorf("appending staging rows: %w", err)
	}
	w.logger.Info("staging rows appended", "rows", n)
	return nil
}

// stagedNorma is the projection of a staging row the embedder needs.
type stagedNorma struct {
	ID      int64
	Content string
}

// MergeEmbeddings embeds every staged norma and upserts the vectors into
// master_embeddings, then clears staging. Embedding happens before the
// transaction opens, so a slow or failing model never holds locks; the
// upserts and the truncate commit together, which means a staged row is
// only discarded once its embedding is durable. It returns the number of
// embeddings written.
func (w *Warehouse) MergeEmbeddings(ctx context.Context) (int, error) {
	staged, err := w.loadStaging(ctx)
	if err != nil {
		return 0, err
	}
	if len(staged) == 0 {
		w.logger.Info("no staged rows, skipping embedding merge")
		return 0, nil
	}

	vectors, err := w.embedAll(ctx, staged)
	if err != nil {
		return 0, err
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning embedding merge: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO master_embeddings (id_norma, content, embedding, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id_norma) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i, s := range staged {
		vec := pgvector.NewVector(vectors[i])
		if _, err := tx.Exec(ctx, upsert, s.ID, s.Content, vec, now); err != nil {
			return 0, fmt.Errorf("upserting embedding for norma %d: %w", s.ID, err)
		}
	}
	if _, err := tx.Exec(ctx, "TRUNCATE normas_staging"); err != nil {
		return 0, fmt.Errorf("clearing staging: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing embedding merge: %w", err)
	}

	w.logger.Info("embeddings merged", "rows", len(staged))
	return len(staged), nil
}

func (w *Warehouse) loadStaging(ctx context.Context) ([]stagedNorma, error) {
	const q = `
		SELECT id_norma, COALESCE(tipo_norma, ''), COALESCE(numero_norma, ''),
		       COALESCE(titulo_resumido, ''), COALESCE(titulo_sumario, ''),
		       COALESCE(texto_resumido, ''), COALESCE(observaciones, '')
		FROM normas_staging
		ORDER BY id_norma`

	rows, err := w.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading staging: %w", err)
	}
	defer rows.Close()

	var staged []stagedNorma
	for rows.Next() {
		var id int64
		var tipo, numero, tituloR, tituloS, texto, obs string
		if err := rows.Scan(&id, &tipo, &numero, &tituloR, &tituloS, &texto, &obs); err != nil {
			return nil, fmt.Errorf("scanning staging row: %w", err)
		}
		staged = append(staged, stagedNorma{
			ID:      id,
			Content: embeddingText(tipo, numero, tituloR, tituloS, texto, obs),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staging rows: %w", err)
	}
	return staged, nil
}

// embedAll produces one vector per staged norma, batching requests.
func (w *Warehouse) embedAll(ctx context.Context, staged []stagedNorma) ([][]float32, error) {
	vectors := make([][]float32, 0, len(staged))
	for start := 0; start < len(staged); start += embedBatchSize {
		end := min(start+embedBatchSize, len(staged))

		req := &ai.EmbedRequest{}
		for _, s := range staged[start:end] {
			req.Input = append(req.Input, &ai.Document{
				Content: []*ai.Part{ai.NewTextPart(s.Content)},
			})
		}
		resp, err := w.embedder.Embed(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("embedding staged normas: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d documents",
				len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Embedding)
		}
	}
	return vectors, nil
}
