package infoleg

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/koopa0/ragboletin/internal/norma"
)

// Extraction patterns. The accented labels tolerate mis-decoded encodings
// seen in the wild ("Número" arriving as "NÃºmero").
var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	tipoRe          = regexp.MustCompile(`^([A-ZÀÁÉÍÓÚÑa-zàáéíóúñ]+(?:\s+[A-ZÀÁÉÍÓÚÑa-zàáéíóúñ]+)*?)\s+\d+`)
	numeroRe        = regexp.MustCompile(`\b(\d+)(?:/\d{4})?\b`)
	organismoRe     = regexp.MustCompile(`\d+(?:/\d{4})?\s+(.+)`)
	claseRe         = regexp.MustCompile(`^([A-Za-z\s]+?)\s+\d+`)
	digitsOnlyRe    = regexp.MustCompile(`^\d+$`)
	boletinFechaRe  = regexp.MustCompile(`(\d{2}-[A-Z]{3}-\d{4})`)
	numeroBoletinRe = regexp.MustCompile(`N[uú]mero:\s*(\d+)`)
	paginaRe        = regexp.MustCompile(`P[aá]gina:\s*(\d+)`)
	resumenLabelRe  = regexp.MustCompile(`(?i)^Resumen:\s*`)
	observacionesRe = regexp.MustCompile(`(?i)Observaciones:`)
	textoOrigRe     = regexp.MustCompile(`(?i)texto completo`)
	textoActRe      = regexp.MustCompile(`(?i)texto actualizado`)
	vinculosModo1Re = regexp.MustCompile(`verVinculos\.do.*modo=1`)
	vinculosModo2Re = regexp.MustCompile(`verVinculos\.do.*modo=2`)
	firstNumberRe   = regexp.MustCompile(`(\d+)`)
)

// minSummaryLength discards Resumen bodies too short to be real summaries.
const minSummaryLength = 10

// Extractor parses one norma page into a Record.
//
// Every field extraction is best-effort with a safe default; missing or
// malformed markup never fails an extraction. Only a broken document (or an
// unexpected panic while walking it) yields an error, in which case the
// record is dropped by the caller.
type Extractor struct {
	// origin is the fixed base used to absolutize relative document links.
	origin string
}

// NewExtractor creates an Extractor. origin is the Infoleg base URL
// (e.g. https://servicios.infoleg.gob.ar/infolegInternet).
func NewExtractor(origin string) *Extractor {
	return &Extractor{origin: strings.TrimRight(origin, "/")}
}

// Extract parses the markup of one norma page into a Record for id.
func (e *Extractor) Extract(id int64, r io.Reader) (rec norma.Record, err error) {
	// One malformed page must not take down a whole batch.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic extracting norma %d: %v", id, p)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return norma.Record{}, fmt.Errorf("parsing norma %d: %w", id, err)
	}

	rec = norma.NewRecord(id)

	e.extractHeading(doc, &rec)
	e.extractSanctionDate(doc, &rec)
	e.extractTitlesAndBulletin(doc, &rec)
	e.extractSummary(doc, &rec)
	e.extractObservations(doc, &rec)
	e.extractDocumentLinks(doc, &rec)
	e.extractCrossReferences(doc, &rec)

	return rec, nil
}

// extractHeading parses tipo, numero, clase and organismo from the first
// bold line, which has the shape "TIPO NUMERO[/YEAR] ORGANISMO".
func (e *Extractor) extractHeading(doc *goquery.Document, rec *norma.Record) {
	strong := doc.Find("strong").First()
	if strong.Length() == 0 {
		return
	}
	text := whitespaceRe.ReplaceAllString(strings.TrimSpace(strong.Text()), " ")

	if m := tipoRe.FindStringSubmatch(text); m != nil {
		rec.TipoNorma = strings.TrimSpace(m[1])
	}
	if m := numeroRe.FindStringSubmatch(text); m != nil {
		rec.NumeroNorma = m[1]
	}
	if m := organismoRe.FindStringSubmatch(text); m != nil {
		rec.OrganismoOrigen = strings.TrimSpace(m[1])
	}

	// Clase, when present, sits between tipo and numero
	// (e.g. "Resolución Conjunta 5/2024 ...").
	if rec.TipoNorma != "" && rec.NumeroNorma != norma.SentinelNoNumber {
		remaining := strings.TrimSpace(strings.Replace(text, rec.TipoNorma, "", 1))
		if m := claseRe.FindStringSubmatch(remaining); m != nil {
			clase := strings.TrimSpace(m[1])
			if clase != "" && !digitsOnlyRe.MatchString(clase) {
				rec.ClaseNorma = clase
			}
		}
	}
}

// extractSanctionDate reads the sanction date from the classed inline
// element. An unnormalizable date is kept raw rather than discarded.
func (e *Extractor) extractSanctionDate(doc *goquery.Document, rec *norma.Record) {
	fecha := strings.TrimSpace(doc.Find("span.vr_azul11").First().Text())
	if fecha == "" {
		return
	}
	if normalized, ok := norma.NormalizeDate(fecha); ok {
		rec.FechaSancion = normalized
	} else {
		rec.FechaSancion = fecha
	}
}

// extractTitlesAndBulletin reads the h1 title, the highlighted summary
// title, and the bulletin date/number/page from the paragraph following
// the h1.
func (e *Extractor) extractTitlesAndBulletin(doc *goquery.Document, rec *norma.Record) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return
	}
	rec.TituloResumido = strings.TrimSpace(h1.Text())

	rec.TituloSumario = strings.TrimSpace(doc.Find("span.destacado").First().Text())

	pBoletin := h1.NextAllFiltered("p").First()
	if pBoletin.Length() == 0 {
		return
	}
	boletinText := pBoletin.Text()

	// Bulletin date: prefer the archive hyperlink, fall back to a regex
	// over the surrounding text.
	fechaLink := pBoletin.Find(`a[href*="page_id=216"]`).First()
	if fechaLink.Length() > 0 {
		if normalized, ok := norma.NormalizeDate(strings.TrimSpace(fechaLink.Text())); ok {
			rec.FechaBoletin = normalized
		}
	}
	if rec.FechaBoletin == "" {
		if m := boletinFechaRe.FindStringSubmatch(boletinText); m != nil {
			if normalized, ok := norma.NormalizeDate(m[1]); ok {
				rec.FechaBoletin = normalized
			}
		}
	}

	if m := numeroBoletinRe.FindStringSubmatch(boletinText); m != nil {
		rec.NumeroBoletin = m[1]
	}
	if m := paginaRe.FindStringSubmatch(boletinText); m != nil {
		rec.PaginaBoletin = m[1]
	}
}

// extractSummary locates the "Resumen:" body, either inside the parent of a
// bold Resumen label or in a paragraph starting with the label. Bodies under
// minSummaryLength characters are treated as noise.
func (e *Extractor) extractSummary(doc *goquery.Document, rec *norma.Record) {
	resumenStrong := doc.Find("strong").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), "Resumen")
	}).First()
	if resumenStrong.Length() > 0 {
		parentText := strings.TrimSpace(resumenStrong.Parent().Text())
		text := resumenLabelRe.ReplaceAllString(parentText, "")
		if len(text) > minSummaryLength {
			rec.TextoResumido = text
			return
		}
	}

	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if !strings.HasPrefix(text, "Resumen:") && !strings.HasPrefix(text, "resumen:") {
			return true
		}
		text = resumenLabelRe.ReplaceAllString(text, "")
		if len(text) > minSummaryLength {
			rec.TextoResumido = text
			return false
		}
		return true
	})
}

// extractObservations reads the text node following a bold
// "Observaciones:" label, when present.
func (e *Extractor) extractObservations(doc *goquery.Document, rec *norma.Record) {
	obsStrong := doc.Find("strong").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return observacionesRe.MatchString(s.Text())
	}).First()
	if obsStrong.Length() == 0 {
		return
	}
	node := obsStrong.Get(0).NextSibling
	if node != nil && node.Type == html.TextNode {
		rec.Observaciones = strings.TrimSpace(node.Data)
	}
}

// extractDocumentLinks captures the outbound "Texto completo" and
// "Texto actualizado" links, absolutized against the fixed origin.
func (e *Extractor) extractDocumentLinks(doc *goquery.Document, rec *norma.Record) {
	rec.TextoOriginal = e.findLinkByText(doc, textoOrigRe)
	rec.TextoActualizado = e.findLinkByText(doc, textoActRe)
}

func (e *Extractor) findLinkByText(doc *goquery.Document, re *regexp.Regexp) string {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !re.MatchString(a.Text()) {
			return true
		}
		h, ok := a.Attr("href")
		if !ok || h == "" {
			return true
		}
		href = h
		return false
	})
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return e.origin + "/" + strings.TrimLeft(href, "/")
}

// extractCrossReferences parses the modification counts from the two
// verVinculos links (modo=1 "modifies", modo=2 "modified by").
func (e *Extractor) extractCrossReferences(doc *goquery.Document, rec *norma.Record) {
	rec.ModificaA = e.linkCount(doc, vinculosModo1Re)
	rec.ModificadaPor = e.linkCount(doc, vinculosModo2Re)
}

func (e *Extractor) linkCount(doc *goquery.Document, hrefRe *regexp.Regexp) int {
	count := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !hrefRe.MatchString(href) {
			return true
		}
		if m := firstNumberRe.FindStringSubmatch(a.Text()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				count = n
			}
		}
		return false
	})
	return count
}
