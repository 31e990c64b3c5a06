package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
)

// Location is a geocoded address candidate.
type Location struct {
	Formatted string  `json:"formatted"`
	PlaceID   string  `json:"place_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Client defines methods against the geocoding/routing provider.
type Client interface {
	// Autocomplete returns address candidates for a partial query.
	Autocomplete(ctx context.Context, text string) ([]Location, error)
	// RouteDistance returns the driving distance in meters between two points.
	RouteDistance(ctx context.Context, from, to Location) (float64, error)
}

type client struct {
	baseURL     string
	apiKey      string
	countryCode string
	http        *http.Client
}

// NewClient creates a provider client. Results are restricted to the given
// country code.
func NewClient(baseURL, apiKey, countryCode string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: baseURL, apiKey: apiKey, countryCode: countryCode, http: httpClient}
}

func (c *client) Autocomplete(ctx context.Context, text string) ([]Location, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("filter", "countrycode:"+c.countryCode)
	q.Set("format", "json")
	q.Set("apiKey", c.apiKey)
	endpoint := fmt.Sprintf("%s/v1/geocode/autocomplete?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.NewProviderUnavailableError("geocoding", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperr.NewProviderUnavailableError("geocoding",
			fmt.Errorf("autocomplete endpoint %d: %s", resp.StatusCode, string(b)))
	}

	var body struct {
		Results []Location `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.NewProviderUnavailableError("geocoding", err)
	}
	return body.Results, nil
}

func (c *client) RouteDistance(ctx context.Context, from, to Location) (float64, error) {
	q := url.Values{}
	q.Set("waypoints", fmt.Sprintf("%f,%f|%f,%f", from.Lat, from.Lon, to.Lat, to.Lon))
	q.Set("mode", "drive")
	q.Set("apiKey", c.apiKey)
	endpoint := fmt.Sprintf("%s/v1/routing?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperr.NewProviderUnavailableError("routing", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, apperr.NewProviderUnavailableError("routing",
			fmt.Errorf("routing endpoint %d: %s", resp.StatusCode, string(b)))
	}

	var body struct {
		Features []struct {
			Properties struct {
				Distance float64 `json:"distance"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, apperr.NewProviderUnavailableError("routing", err)
	}
	if len(body.Features) == 0 {
		return 0, apperr.NewProviderUnavailableError("routing",
			fmt.Errorf("no route between %q and %q", from.Formatted, to.Formatted))
	}
	return body.Features[0].Properties.Distance, nil
}
