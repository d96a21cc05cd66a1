package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tokobuning/backend/internal/cache"
	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/logging"
	"tokobuning/backend/internal/metrics"
)

var (
	ErrNotFound    = errors.New("barcode not found in product database")
	ErrUnavailable = errors.New("product database unavailable")
)

const defaultVariantName = "Eceran"

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Cache    cache.LookupCache
	Metrics  *metrics.Registry
	Logger   logrus.FieldLogger
}

// Client looks products up in Open Food Facts. Found results are cached;
// misses are not.
type Client struct {
	baseURL  string
	http     *http.Client
	cacheTTL time.Duration
	cache    cache.LookupCache
	metrics  *metrics.Registry
	logger   logrus.FieldLogger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http:     &http.Client{Timeout: timeout},
		cacheTTL: opts.CacheTTL,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = "https://world.openfoodfacts.org"
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = 24 * time.Hour
	}
	if c.cache == nil {
		c.cache = cache.NoopLookupCache{}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c
}

type offResponse struct {
	Status  int         `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	ProductNameID  string   `json:"product_name_id"`
	ProductName    string   `json:"product_name"`
	GenericNameID  string   `json:"generic_name_id"`
	GenericName    string   `json:"generic_name"`
	CategoriesTags []string `json:"categories_tags"`
	Brands         string   `json:"brands"`
}

func (c *Client) Lookup(ctx context.Context, code string) (domain.BarcodeProduct, error) {
	code = strings.TrimSpace(code)
	if cached, ok := c.cached(ctx, code); ok {
		c.metrics.ObserveBarcodeLookup("cache_hit")
		return cached, nil
	}

	// Another process may already be fetching this code. Contention is not an
	// error; we fetch directly.
	release, locked, err := c.cache.Lock(ctx, code, c.http.Timeout*2)
	if err != nil {
		logging.LogError(c.logger, "barcode", "Lookup", "lookup lock failed", map[string]string{"barcode": code}, err)
	}
	defer release()
	if locked {
		if cached, ok := c.cached(ctx, code); ok {
			c.metrics.ObserveBarcodeLookup("cache_hit")
			return cached, nil
		}
	}

	product, err := c.fetch(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		c.metrics.ObserveBarcodeLookup("not_found")
		return domain.BarcodeProduct{}, err
	case err != nil:
		c.metrics.ObserveBarcodeLookup("error")
		logging.LogError(c.logger, "barcode", "Lookup", "product database request failed", map[string]string{"barcode": code}, err)
		return domain.BarcodeProduct{}, err
	}

	c.metrics.ObserveBarcodeLookup("found")
	if err := c.cache.Set(ctx, code, &product, c.cacheTTL); err != nil {
		logging.LogError(c.logger, "barcode", "Lookup", "cache write failed", map[string]string{"barcode": code}, err)
	}
	return product, nil
}

func (c *Client) cached(ctx context.Context, code string) (domain.BarcodeProduct, bool) {
	hit, ok, err := c.cache.Get(ctx, code)
	if err != nil {
		logging.LogError(c.logger, "barcode", "Lookup", "cache read failed", map[string]string{"barcode": code}, err)
		return domain.BarcodeProduct{}, false
	}
	if !ok || hit == nil {
		return domain.BarcodeProduct{}, false
	}
	return *hit, true
}

func (c *Client) fetch(ctx context.Context, code string) (domain.BarcodeProduct, error) {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.BarcodeProduct{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.BarcodeProduct{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return domain.BarcodeProduct{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.BarcodeProduct{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed offResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.BarcodeProduct{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	if parsed.Status != 1 || parsed.Product == nil {
		return domain.BarcodeProduct{}, ErrNotFound
	}
	return toProduct(code, *parsed.Product), nil
}

func toProduct(code string, p offProduct) domain.BarcodeProduct {
	out := domain.BarcodeProduct{
		Barcode:     code,
		ProductName: firstNonEmpty(p.ProductNameID, p.ProductName),
		VariantName: firstNonEmpty(p.GenericNameID, p.GenericName, defaultVariantName),
		SKU:         code,
		Brand:       strings.TrimSpace(p.Brands),
	}
	if len(p.CategoriesTags) > 0 {
		out.Category = p.CategoriesTags[0]
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
