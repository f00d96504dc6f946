// Package places provides the Google Places (New) client used for discovery.
// Search requests use the ids-only field mask, which is free and unmetered;
// detail requests use the Pro field mask and are spent only on deduplicated
// candidates.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lferraz/leadscout/internal/types"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// Search returns place ids only.
const searchFieldMask = "places.id,nextPageToken"

// Details uses the Pro SKU field mask. No "places." prefix on detail masks.
const detailsFieldMask = "id,displayName,formattedAddress,types,primaryType,location,businessStatus,googleMapsUri"

// Rect is a lat/lng bounding rectangle restricting search results.
type Rect struct {
	LowLat  float64
	LowLng  float64
	HighLat float64
	HighLng float64
}

// Options configures the client.
type Options struct {
	PageSize    int
	Restriction Rect
	Timeout     time.Duration
	BaseURL     string // overridden in tests
}

// Page is one page of search results: opaque record identifiers plus an
// optional token for the next page.
type Page struct {
	IDs           []string
	NextPageToken string
}

// Client calls the Places text-search and place-details endpoints.
type Client struct {
	http    *http.Client
	apiKey  string
	opts    Options
	baseURL string
}

// NewClient creates a Places client.
func NewClient(apiKey string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		apiKey:  apiKey,
		opts:    opts,
		baseURL: baseURL,
	}
}

type searchRequest struct {
	TextQuery           string         `json:"textQuery"`
	PageSize            int            `json:"pageSize,omitempty"`
	PageToken           string         `json:"pageToken,omitempty"`
	LocationRestriction map[string]any `json:"locationRestriction,omitempty"`
}

type searchResponse struct {
	Places []struct {
		ID string `json:"id"`
	} `json:"places"`
	NextPageToken string `json:"nextPageToken"`
}

// Search fetches one page of place ids for a text query. A non-empty
// pageToken continues a previous page.
func (c *Client) Search(ctx context.Context, query, pageToken string) (*Page, error) {
	body := searchRequest{
		TextQuery: query,
		PageSize:  c.opts.PageSize,
		PageToken: pageToken,
	}
	if c.opts.Restriction != (Rect{}) {
		body.LocationRestriction = map[string]any{
			"rectangle": map[string]any{
				"low":  map[string]float64{"latitude": c.opts.Restriction.LowLat, "longitude": c.opts.Restriction.LowLng},
				"high": map[string]float64{"latitude": c.opts.Restriction.HighLat, "longitude": c.opts.Restriction.HighLng},
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "search", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus("search", resp); err != nil {
		return nil, err
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransientError{Op: "search", Cause: err}
	}

	page := &Page{NextPageToken: decoded.NextPageToken}
	for _, p := range decoded.Places {
		if p.ID != "" {
			page.IDs = append(page.IDs, p.ID)
		}
	}
	return page, nil
}

type detailsResponse struct {
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string   `json:"formattedAddress"`
	Types            []string `json:"types"`
	PrimaryType      string   `json:"primaryType"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	BusinessStatus string `json:"businessStatus"`
	GoogleMapsURI  string `json:"googleMapsUri"`
}

// FetchDetails fetches descriptive attributes for one place id. Returns
// ErrNotFound when the id no longer resolves.
func (c *Client) FetchDetails(ctx context.Context, id string) (*types.CandidateDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create details request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailsFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "details", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := classifyStatus("details", resp); err != nil {
		return nil, err
	}

	var decoded detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransientError{Op: "details", Cause: err}
	}

	details := &types.CandidateDetails{
		Name:            decoded.DisplayName.Text,
		Address:         decoded.FormattedAddress,
		Categories:      decoded.Types,
		PrimaryCategory: decoded.PrimaryType,
		BusinessStatus:  decoded.BusinessStatus,
		MapsURI:         decoded.GoogleMapsURI,
	}
	if decoded.Location != nil {
		lat, lng := decoded.Location.Latitude, decoded.Location.Longitude
		details.Latitude = &lat
		details.Longitude = &lng
	}
	return details, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: throttling
// and server errors are retryable, other non-2xx responses are fatal.
func classifyStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
	if resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode >= 500 {
		return &TransientError{Op: op, Cause: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
	}
	return &FatalError{Op: op, Status: resp.StatusCode, Body: string(body)}
}
