// Package norma defines the legal-bulletin record model shared by the
// scraper, the merge pipeline and the warehouse: the 17-field Record, its
// fixed CSV schema, the Spanish date normalizer and keep-last deduplication.
package norma

import (
	"fmt"
	"strconv"
)

// SentinelNoNumber marks a norma published without a number.
// It is preserved in the CSV files and normalized to NULL at warehouse load.
const SentinelNoNumber = "S/N"

// Record is one legal-bulletin entry scraped from a norma page.
//
// Classification fields are best-effort extracted and default to the empty
// string (or SentinelNoNumber for NumeroNorma). Date fields hold YYYY-MM-DD
// when the source date normalized, otherwise the raw source text.
// Records are never mutated in place; a corrected scrape of the same IDNorma
// wins at dedupe time.
type Record struct {
	IDNorma          int64
	TipoNorma        string
	NumeroNorma      string
	ClaseNorma       string
	OrganismoOrigen  string
	FechaSancion     string
	NumeroBoletin    string
	FechaBoletin     string
	PaginaBoletin    string
	TituloResumido   string
	TituloSumario    string
	TextoResumido    string
	Observaciones    string
	TextoOriginal    string
	TextoActualizado string
	ModificadaPor    int
	ModificaA        int
}

// NewRecord returns a Record for the given id with all field defaults set.
func NewRecord(id int64) Record {
	return Record{
		IDNorma:     id,
		NumeroNorma: SentinelNoNumber,
	}
}

// Header returns the fixed 17-column CSV header, in schema order.
func Header() []string {
	return []string{
		"id_norma",
		"tipo_norma",
		"numero_norma",
		"clase_norma",
		"organismo_origen",
		"fecha_sancion",
		"numero_boletin",
		"fecha_boletin",
		"pagina_boletin",
		"titulo_resumido",
		"titulo_sumario",
		"texto_resumido",
		"observaciones",
		"texto_original",
		"texto_actualizado",
		"modificada_por",
		"modifica_a",
	}
}

// Row returns the record as a CSV data row in schema order.
func (r Record) Row() []string {
	return []string{
		strconv.FormatInt(r.IDNorma, 10),
		r.TipoNorma,
		r.NumeroNorma,
		r.ClaseNorma,
		r.OrganismoOrigen,
		r.FechaSancion,
		r.NumeroBoletin,
		r.FechaBoletin,
		r.PaginaBoletin,
		r.TituloResumido,
		r.TituloSumario,
		r.TextoResumido,
		r.Observaciones,
		r.TextoOriginal,
		r.TextoActualizado,
		strconv.Itoa(r.ModificadaPor),
		strconv.Itoa(r.ModificaA),
	}
}

// FromRow parses a CSV data row in schema order.
// Blank cross-reference counts parse as 0.
func FromRow(row []string) (Record, error) {
	if len(row) != len(Header()) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(Header()), len(row))
	}

	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parsing id_norma %q: %w", row[0], err)
	}

	modificadaPor, err := parseCount(row[15])
	if err != nil {
		return Record{}, fmt.Errorf("parsing modificada_por %q: %w", row[15], err)
	}
	modificaA, err := parseCount(row[16])
	if err != nil {
		return Record{}, fmt.Errorf("parsing modifica_a %q: %w", row[16], err)
	}

	return Record{
		IDNorma:          id,
		TipoNorma:        row[1],
		NumeroNorma:      row[2],
		ClaseNorma:       row[3],
		OrganismoOrigen:  row[4],
		FechaSancion:     row[5],
		NumeroBoletin:    row[6],
		FechaBoletin:     row[7],
		PaginaBoletin:    row[8],
		TituloResumido:   row[9],
		TituloSumario:    row[10],
		TextoResumido:    row[11],
		Observaciones:    row[12],
		TextoOriginal:    row[13],
		TextoActualizado: row[14],
		ModificadaPor:    modificadaPor,
		ModificaA:        modificaA,
	}, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// DeduplicateKeepLast collapses records sharing an IDNorma, keeping the last
// occurrence so that later scrapes of a corrected record win. Surviving
// records keep the relative order of their last occurrence.
func DeduplicateKeepLast(records []Record) []Record {
	last := make(map[int64]int, len(records))
	for i, r := range records {
		last[r.IDNorma] = i
	}

	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[r.IDNorma] == i {
			out = append(out, r)
		}
	}
	return out
}
