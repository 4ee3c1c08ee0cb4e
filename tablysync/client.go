package tablysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type tablyClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newTablyClient(apiKey string) (*tablyClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("TABLY_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.tably.io"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("TABLY_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("tably api key is empty")
	}
	rateLimitPerMin := int64(20)
	if v := strings.TrimSpace(os.Getenv("TABLY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &tablyClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type tablyListResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

func (c *tablyClient) getList(ctx context.Context, path string, params url.Values) (tablyListResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tablyListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return tablyListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tablyListResponse{}, fmt.Errorf("tably api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tablyListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tablyListResponse{}, err
	}
	return parsed, nil
}

// fetchOrders pages through every order the provider attributes to the
// requested business-date window. The API is known to over-return orders
// adjacent to the window boundaries; the range gate in AggregateOrders drops
// those, not this fetch.
func (c *tablyClient) fetchOrders(ctx context.Context, restaurantId string, startDate, endDate time.Time) ([]Order, error) {
	ordersPath := strings.TrimSpace(os.Getenv("TABLY_ORDERS_PATH"))
	if ordersPath == "" {
		ordersPath = "/v1/orders"
	}

	var (
		orders     []Order
		nextCursor string
	)
	for {
		params := url.Values{}
		params.Set("restaurantGuid", restaurantId)
		params.Set("startBusinessDate", startDate.Format("20060102"))
		params.Set("endBusinessDate", endDate.Format("20060102"))
		params.Set("limit", "100")
		if nextCursor != "" {
			params.Set("cursor", nextCursor)
		}

		resp, err := c.getList(ctx, ordersPath, params)
		if err != nil {
			return orders, err
		}

		items := resp.Data
		if len(items) == 0 {
			items = resp.Items
		}
		for _, raw := range items {
			var o Order
			if err := json.Unmarshal(raw, &o); err != nil {
				return orders, fmt.Errorf("decode order: %w", err)
			}
			orders = append(orders, o)
		}

		if resp.NextCursor == "" || (resp.HasMore != nil && !*resp.HasMore) {
			return orders, nil
		}
		nextCursor = resp.NextCursor
	}
}

type tablyConfigEntry struct {
	GUID    string `json:"guid"`
	Name    string `json:"name"`
	Outdoor bool   `json:"outdoor"`
}

// fetchConfigMappings loads the three provider configuration dictionaries the
// allocator consumes. They change rarely; the worker caches the result.
func (c *tablyClient) fetchConfigMappings(ctx context.Context, restaurantId string) (ConfigMappings, error) {
	maps := ConfigMappings{
		SalesCategories: map[string]string{},
		DiningServices:  map[string]string{},
		RevenueCenters:  map[string]RevenueCenterInfo{},
	}

	categories, err := c.fetchConfigEntries(ctx, "/v1/config/sales-categories", restaurantId)
	if err != nil {
		return maps, err
	}
	for _, e := range categories {
		maps.SalesCategories[e.GUID] = e.Name
	}

	services, err := c.fetchConfigEntries(ctx, "/v1/config/dining-services", restaurantId)
	if err != nil {
		return maps, err
	}
	for _, e := range services {
		maps.DiningServices[e.GUID] = e.Name
	}

	centers, err := c.fetchConfigEntries(ctx, "/v1/config/revenue-centers", restaurantId)
	if err != nil {
		return maps, err
	}
	for _, e := range centers {
		maps.RevenueCenters[e.GUID] = RevenueCenterInfo{Name: e.Name, Outdoor: e.Outdoor}
	}

	return maps, nil
}

func (c *tablyClient) fetchConfigEntries(ctx context.Context, path string, restaurantId string) ([]tablyConfigEntry, error) {
	var (
		entries    []tablyConfigEntry
		nextCursor string
	)
	for {
		params := url.Values{}
		params.Set("restaurantGuid", restaurantId)
		params.Set("limit", "200")
		if nextCursor != "" {
			params.Set("cursor", nextCursor)
		}

		resp, err := c.getList(ctx, path, params)
		if err != nil {
			return entries, err
		}

		items := resp.Data
		if len(items) == 0 {
			items = resp.Items
		}
		for _, raw := range items {
			var e tablyConfigEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return entries, fmt.Errorf("decode config entry: %w", err)
			}
			entries = append(entries, e)
		}

		if resp.NextCursor == "" || (resp.HasMore != nil && !*resp.HasMore) {
			return entries, nil
		}
		nextCursor = resp.NextCursor
	}
}
