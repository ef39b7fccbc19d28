package warehouse

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/koopa0/ragboletin/internal/norma"
)

// copySource adapts records to the CopyFrom protocol in normaColumns order.
func copySource(records []norma.Record) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		r := records[i]
		return []any{
			r.IDNorma,
			nullString(r.TipoNorma),
			numeroValue(r.NumeroNorma),
			nullString(r.ClaseNorma),
			nullString(r.OrganismoOrigen),
			dateOrNil(r.FechaSancion),
			nullString(r.NumeroBoletin),
			dateOrNil(r.FechaBoletin),
			nullString(r.PaginaBoletin),
			nullString(r.TituloResumido),
			nullString(r.TituloSumario),
			nullString(r.TextoResumido),
			nullString(r.Observaciones),
			nullString(r.TextoOriginal),
			nullString(r.TextoActualizado),
			r.ModificadaPor,
			r.ModificaA,
		}, nil
	})
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// numeroValue treats the unnumbered-norma sentinel as absent, so the column
// only ever carries real numbers.
func numeroValue(s string) any {
	if s == "" || s == norma.SentinelNoNumber {
		return nil
	}
	return s
}

// dateOrNil loads only ISO dates; raw strings the normalizer could not parse
// stay in the CSV but become NULL in the warehouse.
func dateOrNil(s string) any {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return t
}

// embeddingText assembles the searchable content of one norma.
func embeddingText(tipo, numero, tituloResumido, tituloSumario, textoResumido, observaciones string) string {
	var parts []string
	heading := strings.TrimSpace(tipo + " " + numero)
	if heading != "" {
		parts = append(parts, heading)
	}
	for _, s := range []string{tituloResumido, tituloSumario, textoResumido, observaciones} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
