// Package geotools implements the geolocation capabilities exposed to the
// generation model when a query carries location intent.
package geotools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Edge-provided geo headers, set by the CDN in front of the service.
const (
	headerCity      = "X-Geo-City"
	headerLatitude  = "X-Geo-Latitude"
	headerLongitude = "X-Geo-Longitude"
)

const lookupTimeout = 5 * time.Second

// Location is an approximate user position. Confirmed is false when the
// position came from a coarse IP lookup and the user should be asked to
// confirm it.
type Location struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Confirmed bool    `json:"confirmed"`
}

// RequestMeta is the per-request context the locator works from.
type RequestMeta struct {
	Header http.Header
	IP     string
}

// Locator derives a user's approximate location, preferring edge geo headers
// and falling back to an external IP-geolocation HTTP API. It also resolves
// place names through a nominatim-style geocoding API when one is configured.
type Locator struct {
	client     *http.Client
	geoURL     string
	geocodeURL string
}

func NewLocator(geoURL, geocodeURL string) *Locator {
	return &Locator{
		client:     &http.Client{Timeout: lookupTimeout},
		geoURL:     geoURL,
		geocodeURL: geocodeURL,
	}
}

func (l *Locator) Locate(ctx context.Context, meta RequestMeta) (*Location, error) {
	if loc := fromHeaders(meta.Header); loc != nil {
		return loc, nil
	}
	if l.geoURL == "" || meta.IP == "" {
		return nil, fmt.Errorf("no location information available")
	}
	return l.fromIP(ctx, meta.IP)
}

func fromHeaders(header http.Header) *Location {
	if header == nil {
		return nil
	}
	latStr := header.Get(headerLatitude)
	longStr := header.Get(headerLongitude)
	if latStr == "" || longStr == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	long, err := strconv.ParseFloat(longStr, 64)
	if err != nil {
		return nil
	}
	return &Location{
		City:      header.Get(headerCity),
		Latitude:  lat,
		Longitude: long,
		Confirmed: true,
	}
}

type ipGeoResponse struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Status    string  `json:"status"`
}

func (l *Locator) fromIP(ctx context.Context, ip string) (*Location, error) {
	url := fmt.Sprintf("%s/%s", l.geoURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		logutil.GetLogger(ctx).Warn("ip geolocation lookup failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip geolocation returned status %d", resp.StatusCode)
	}
	var body ipGeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Status != "" && body.Status != "success" {
		return nil, fmt.Errorf("ip geolocation failed for %s", ip)
	}
	return &Location{
		City:      body.City,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Confirmed: false,
	}, nil
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves a place name to coordinates. The endpoint follows the
// nominatim query interface: string lat/lon in a JSON array, best match first.
func (l *Locator) Geocode(ctx context.Context, place string) (float64, float64, error) {
	if l.geocodeURL == "" {
		return 0, 0, fmt.Errorf("geocoding not configured")
	}
	requestURL := fmt.Sprintf("%s?q=%s&format=json&limit=1", l.geocodeURL, url.QueryEscape(place))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		logutil.GetLogger(ctx).Warn("geocode lookup failed", zap.String("place", place), zap.Error(err))
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocode returned status %d", resp.StatusCode)
	}
	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("no match for place %q", place)
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, err
	}
	long, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, long, nil
}
