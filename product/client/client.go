package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/product/pkg/response"
)

const (
	gatewayName = "catalog"
	keyProducts = "storefront-products:"
	cacheTTL    = 5 * time.Minute
)

// Client reads products from the product service. Lookups are cached in redis when a cache is
// given.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	metrics    *metrics.Metrics
}

func NewClient(baseURL string, cache *redis.Client, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		cache:      cache,
		metrics:    m,
	}
}

func (cl *Client) GetProduct(c context.Context, id domain.ProductID) (response.Product, error) {
	cacheKey := keyProducts + strconv.FormatUint(uint64(id), 10)
	c, span := otel.Tracer.Start(
		c,
		"CatalogClient GetProduct",
		trace.WithAttributes(attribute.Int64(log.KeyProductID, int64(id))),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogClient GetProduct").
		Uint64(log.KeyProductID, uint64(id)).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	if cl.cache != nil {
		logger = logger.With().Str(log.KeyProcess, "finding product in cache").Logger()
		logger.Trace().Msg("finding product in cache")
		product, err := cl.fromCache(c, cacheKey)
		if err == nil {
			span.AddEvent("found product in cache")
			logger.Trace().Msg("found product in cache")
			return product, nil
		}
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Msg(err.Error())
		}
	}

	logger = logger.With().Str(log.KeyProcess, "fetching product").Logger()
	logger.Trace().Msg("fetching product")
	product, err := cl.fetch(c, id)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Trace().Msg("fetched product")

	if cl.cache != nil {
		logger = logger.With().Str(log.KeyProcess, "caching product").Logger()
		data, err := json.Marshal(product)
		if err == nil {
			err = cl.cache.Set(c, cacheKey, data, cacheTTL).Err()
		}
		if err != nil {
			err = fmt.Errorf("failed caching product with error=%w", err)
			logger.Warn().Err(err).Msg(err.Error())
		}
	}

	return product, nil
}

func (cl *Client) fromCache(c context.Context, cacheKey string) (response.Product, error) {
	data, err := cl.cache.Get(c, cacheKey).Bytes()
	if err != nil {
		return response.Product{}, err
	}
	product := response.Product{}
	err = json.Unmarshal(data, &product)
	if err != nil {
		return response.Product{}, fmt.Errorf("failed unmarshaling cached product with error=%w", err)
	}
	return product, nil
}

func (cl *Client) fetch(c context.Context, id domain.ProductID) (response.Product, error) {
	url := cl.baseURL + "/products/" + strconv.FormatUint(uint64(id), 10)
	req, err := http.NewRequestWithContext(c, http.MethodGet, url, nil)
	if err != nil {
		return response.Product{}, fmt.Errorf("failed creating request with error=%w", err)
	}
	req.Header.Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	if requestID := log.RequestIDFromContext(c); requestID != "" {
		req.Header.Set(inHttp.HeaderRequestID, requestID)
	}

	start := time.Now()
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		cl.observe("error", start)
		return response.Product{}, fmt.Errorf("failed getting productId=%d with error=%w", id, err)
	}
	defer resp.Body.Close()
	cl.observe(strconv.Itoa(resp.StatusCode), start)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return response.Product{}, fmt.Errorf(
			"failed getting productId=%d with error=%w",
			id,
			inErrors.ErrProductNotFound,
		)
	case resp.StatusCode != http.StatusOK:
		return response.Product{}, fmt.Errorf(
			"failed getting productId=%d with error=product service returned statusCode=%d",
			id,
			resp.StatusCode,
		)
	}

	result := response.GetProduct{}
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return response.Product{}, fmt.Errorf("failed decoding productId=%d with error=%w", id, err)
	}
	if result.Data.Product.ID != id {
		return response.Product{}, fmt.Errorf(
			"failed getting productId=%d with error=%w",
			id,
			inErrors.ErrProductNotFound,
		)
	}
	return result.Data.Product, nil
}

func (cl *Client) observe(status string, start time.Time) {
	cl.metrics.GatewayLatencyMS.
		WithLabelValues(gatewayName, status).
		Observe(float64(time.Since(start).Milliseconds()))
}
