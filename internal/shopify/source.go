// Package shopify implements the external system-of-record adapter for
// redirect reconciliation, backed by the Shopify Admin REST API.
//
// The adapter walks /admin/api/{version}/redirects.json with cursor-based
// pagination (page_info from the Link response header) and maps each remote
// redirect onto the importer's neutral rule shape.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seowizzard/go-redirect-backend/internal/services"
)

// DefaultAPIVersion is used when no version is configured.
const DefaultAPIVersion = "2024-01"

// maxPageSize is the Admin API's hard cap on the limit parameter.
const maxPageSize = 250

// headerAccessToken authenticates Admin API calls.
const headerAccessToken = "X-Shopify-Access-Token"

// linkNextRe extracts the page_info cursor for the next page from the Link
// response header, e.g.
//
//	<https://x.myshopify.com/admin/api/2024-01/redirects.json?page_info=abc&limit=250>; rel="next"
var linkNextRe = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

// Source fetches redirect rules from the Shopify Admin REST API. It satisfies
// services.RuleSource.
type Source struct {
	// AccessToken is the Admin API token used for all shops served by this
	// deployment.
	AccessToken string
	// APIVersion selects the Admin API version; empty uses DefaultAPIVersion.
	APIVersion string

	// Client is the HTTP client used for Admin calls; nil uses a client with
	// a 30s timeout.
	Client *http.Client

	// baseURL overrides the scheme+host per shop in tests; empty means
	// "https://{shop}".
	baseURL string
}

// NewSource constructs a Source with a timeout-bounded HTTP client.
func NewSource(accessToken, apiVersion string) *Source {
	return &Source{
		AccessToken: accessToken,
		APIVersion:  apiVersion,
		Client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// redirectPayload mirrors the Admin API's redirects.json response body.
type redirectPayload struct {
	Redirects []struct {
		ID     int64  `json:"id"`
		Path   string `json:"path"`
		Target string `json:"target"`
	} `json:"redirects"`
}

// FetchPage returns up to limit redirects starting after cursor, the cursor
// for the next page, and whether more pages remain. The zero cursor requests
// the first page.
func (s *Source) FetchPage(ctx context.Context, shop, cursor string, limit int) ([]services.ExternalRule, string, bool, error) {
	if shop == "" {
		return nil, "", false, fmt.Errorf("shopify: shop domain required")
	}
	if s.AccessToken == "" {
		return nil, "", false, fmt.Errorf("shopify: no access token configured")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	version := s.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	base := s.baseURL
	if base == "" {
		base = "https://" + shop
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("page_info", cursor)
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/redirects.json?%s", base, version, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set(headerAccessToken, s.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().Str("shop", shop).Int("status", resp.StatusCode).Msg("admin api fetch failed")
		return nil, "", false, fmt.Errorf("shopify: redirects fetch returned %d: %s", resp.StatusCode, body)
	}

	var payload redirectPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", false, fmt.Errorf("shopify: decode redirects: %w", err)
	}

	items := make([]services.ExternalRule, 0, len(payload.Redirects))
	for _, r := range payload.Redirects {
		items = append(items, services.ExternalRule{
			ID:     strconv.FormatInt(r.ID, 10),
			Path:   r.Path,
			Target: r.Target,
		})
	}

	next := nextPageInfo(resp.Header.Get("Link"))
	return items, next, next != "", nil
}

// nextPageInfo extracts the rel="next" page_info cursor from a Link header.
// Returns "" when there is no next page.
func nextPageInfo(link string) string {
	if link == "" {
		return ""
	}
	m := linkNextRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}
