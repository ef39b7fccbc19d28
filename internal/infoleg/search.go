package infoleg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/koopa0/ragboletin/internal/log"
)

// ErrUnexpectedEmpty indicates a search response with zero norma links and
// no explicit no-results marker. That combination usually means the page
// shape changed, so it is escalated instead of being treated as an empty day.
var ErrUnexpectedEmpty = errors.New("no normas extracted and no no-results marker in response")

// noResultsPhrases are the literal markers the source emits for a genuinely
// empty day. Placeholder policy: the list is matched case-insensitively and
// lives here so it can be revised without touching the client.
var noResultsPhrases = []string{
	"no se encontraron",
	"sin resultados",
}

var (
	normaHrefRe = regexp.MustCompile(`verNorma\.do.*\?id=\d+`)
	normaIDRe   = regexp.MustCompile(`\?id=(\d+)`)
)

// browser-ish request headers; the source rejects bare clients.
const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// SearchClient queries the Boletín Oficial index for the norma ids
// published on a given date.
//
// The client fails closed: network errors and HTTP error statuses yield an
// empty id list (logged) so a transient search failure cannot abort a whole
// partition.
type SearchClient struct {
	client  *http.Client
	baseURL string
	logger  log.Logger
}

// NewSearchClient creates a SearchClient. client may be nil, in which case
// a default with a 30s timeout is used.
func NewSearchClient(baseURL string, client *http.Client, logger log.Logger) *SearchClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SearchClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// NormaIDs searches the bulletin published on date and returns the norma
// ids referenced by the results page, de-duplicated in order of first
// appearance.
//
// A failed request returns an empty list and no error. A structurally empty
// response without a no-results marker returns ErrUnexpectedEmpty.
func (c *SearchClient) NormaIDs(ctx context.Context, date time.Time) ([]int64, error) {
	day := date.Format("2006-01-02")

	form := url.Values{
		"buscarPorNro": {"false"},
		"diaPub":       {strconv.Itoa(date.Day())},
		"mesPub":       {strconv.Itoa(int(date.Month()))},
		"anioPub":      {strconv.Itoa(date.Year())},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/buscarBoletin.do", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL+"/mostrarBuscarBoletin.do")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("boletín search request failed", "date", day, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("boletín search returned error status",
			"date", day, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("reading boletín search response failed", "date", day, "error", err)
		return nil, nil
	}

	ids, err := extractNormaIDs(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("parsing boletín search response failed", "date", day, "error", err)
		return nil, nil
	}

	if len(ids) == 0 {
		if looksLikeNoResults(body) {
			c.logger.Warn("no normas found in boletín", "date", day)
			return nil, nil
		}
		return nil, fmt.Errorf("boletín %s: %w", day, ErrUnexpectedEmpty)
	}

	c.logger.Info("boletín search completed", "date", day, "norma_count", len(ids))
	return ids, nil
}

// extractNormaIDs harvests verNorma.do?id=N hrefs in first-appearance
// order, de-duplicated.
func extractNormaIDs(r io.Reader) ([]int64, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var ids []int64
	seen := make(map[int64]struct{})

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !normaHrefRe.MatchString(href) {
			return
		}
		m := normaIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})

	return ids, nil
}

func looksLikeNoResults(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, phrase := range noResultsPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
