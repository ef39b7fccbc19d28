package infoleg

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragboletin/internal/norma"
)

const testOrigin = "https://servicios.infoleg.gob.ar/infolegInternet"

// normaPageHTML builds a full norma page in the shape the source serves.
func normaPageHTML(id int64) string {
	return fmt.Sprintf(`<html><body>
<p><strong>Disposición 47/2025 DIRECCION NACIONAL DE MIGRACIONES</strong></p>
<p>Fecha de sanción <span class="vr_azul11">06/10/2025</span></p>
<h1>MIGRACIONES - Disposición %d</h1>
<p>Publicada en el Boletín Oficial del <a href="/page_id=216&f=20251007">07-OCT-2025</a>
Número: 35768 Página: 12</p>
<span class="destacado">DISPOSICIONES MIGRATORIAS</span>
<p><strong>Resumen:</strong> Se establecen nuevos requisitos documentales para tramitaciones migratorias.</p>
<p><strong>Observaciones:</strong> Entra en vigencia a los treinta días.</p>
<p><a href="verTexto.do?id=%d">Texto completo de la norma</a></p>
<p><a href="http://servicios.infoleg.gob.ar/act/%d.htm">TEXTO ACTUALIZADO</a></p>
<p><a href="verVinculos.do?id=%d&tipo=norma&modo=1">Esta norma modifica a 2 norma(s)</a></p>
<p><a href="verVinculos.do?id=%d&tipo=norma&modo=2">Esta norma es modificada por 4 norma(s)</a></p>
</body></html>`, id, id, id, id, id)
}

func TestExtractFullPage(t *testing.T) {
	e := NewExtractor(testOrigin)

	rec, err := e.Extract(70790, strings.NewReader(normaPageHTML(70790)))
	require.NoError(t, err)

	require.Equal(t, int64(70790), rec.IDNorma)
	require.Equal(t, "Disposición", rec.TipoNorma)
	require.Equal(t, "47", rec.NumeroNorma)
	require.Equal(t, "DIRECCION NACIONAL DE MIGRACIONES", rec.OrganismoOrigen)
	require.Equal(t, "2025-10-06", rec.FechaSancion)
	require.Equal(t, "MIGRACIONES - Disposición 70790", rec.TituloResumido)
	require.Equal(t, "DISPOSICIONES MIGRATORIAS", rec.TituloSumario)
	require.Equal(t, "2025-10-07", rec.FechaBoletin)
	require.Equal(t, "35768", rec.NumeroBoletin)
	require.Equal(t, "12", rec.PaginaBoletin)
	require.Equal(t,
		"Se establecen nuevos requisitos documentales para tramitaciones migratorias.",
		rec.TextoResumido)
	require.Equal(t, "Entra en vigencia a los treinta días.", rec.Observaciones)
	require.Equal(t, testOrigin+"/verTexto.do?id=70790", rec.TextoOriginal)
	require.Equal(t, "http://servicios.infoleg.gob.ar/act/70790.htm", rec.TextoActualizado)
	require.Equal(t, 2, rec.ModificaA)
	require.Equal(t, 4, rec.ModificadaPor)
}

func TestExtractEmptyPageYieldsDefaults(t *testing.T) {
	e := NewExtractor(testOrigin)

	rec, err := e.Extract(99, strings.NewReader("<html><body><p>nada</p></body></html>"))
	require.NoError(t, err)

	require.Equal(t, int64(99), rec.IDNorma)
	require.Empty(t, rec.TipoNorma)
	require.Equal(t, norma.SentinelNoNumber, rec.NumeroNorma)
	require.Empty(t, rec.ClaseNorma)
	require.Empty(t, rec.OrganismoOrigen)
	require.Empty(t, rec.FechaSancion)
	require.Empty(t, rec.FechaBoletin)
	require.Empty(t, rec.TextoResumido)
	require.Empty(t, rec.TextoOriginal)
	require.Zero(t, rec.ModificaA)
	require.Zero(t, rec.ModificadaPor)
}

func TestExtractHeadingWithoutNumber(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body><strong>Acordada HONORABLE CORTE</strong></body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	// No digits in the heading: number keeps its sentinel.
	require.Equal(t, norma.SentinelNoNumber, rec.NumeroNorma)
	require.Empty(t, rec.TipoNorma)
}

func TestExtractMultiWordTipo(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body><strong>Resolución Conjunta 5/2024 MINISTERIO DE ECONOMIA</strong></body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	// The lazy word group absorbs everything up to the number, so a
	// qualifier like "Conjunta" lands in tipo rather than clase.
	require.Equal(t, "Resolución Conjunta", rec.TipoNorma)
	require.Equal(t, "5", rec.NumeroNorma)
	require.Equal(t, "MINISTERIO DE ECONOMIA", rec.OrganismoOrigen)
	require.Empty(t, rec.ClaseNorma)
}

func TestExtractBulletinDateRegexFallback(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body>
<h1>Titulo</h1>
<p>Publicada en el Boletín Oficial del 15-ENE-2024 Número: 35000</p>
</body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	require.Equal(t, "2024-01-15", rec.FechaBoletin)
	require.Equal(t, "35000", rec.NumeroBoletin)
}

func TestExtractBulletinLabelsMisdecoded(t *testing.T) {
	e := NewExtractor(testOrigin)

	// Mis-decoded accents still match the tolerant label patterns via the
	// unaccented alternative.
	page := `<html><body>
<h1>Titulo</h1>
<p>Numero: 35001 Pagina: 7</p>
</body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	require.Equal(t, "35001", rec.NumeroBoletin)
	require.Equal(t, "7", rec.PaginaBoletin)
}

func TestExtractSummaryParagraphFallback(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body>
<p>Resumen: Prórroga del régimen de facilidades de pago vigente.</p>
</body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	require.Equal(t, "Prórroga del régimen de facilidades de pago vigente.", rec.TextoResumido)
}

func TestExtractSummaryTooShortDiscarded(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body><p><strong>Resumen:</strong> corto</p></body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	require.Empty(t, rec.TextoResumido)
}

func TestExtractUnnormalizableSanctionDateKeptRaw(t *testing.T) {
	e := NewExtractor(testOrigin)

	page := `<html><body><span class="vr_azul11">circa 1994</span></body></html>`
	rec, err := e.Extract(1, strings.NewReader(page))
	require.NoError(t, err)

	require.Equal(t, "circa 1994", rec.FechaSancion)
}
