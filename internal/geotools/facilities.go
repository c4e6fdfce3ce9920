package geotools

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/devashis/prajna/internal/assetstore"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distances.
const EarthRadiusMiles = 3958.8

// DefaultRadiusMiles is the search radius for nearby facilities. The boundary
// is inclusive: a facility at exactly this distance is still a match.
const DefaultRadiusMiles = 150.0

// Facility is one row of the reference dataset.
type Facility struct {
	Name      string  `json:"name"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Distance  float64 `json:"distance_miles"`
}

// FacilityIndex holds the dataset in memory; loaded once at startup and
// read-only afterwards.
type FacilityIndex struct {
	facilities  []Facility
	radiusMiles float64
}

// NewFacilityIndex builds an index over an already-loaded dataset. A
// radiusMiles of zero or below falls back to DefaultRadiusMiles.
func NewFacilityIndex(facilities []Facility, radiusMiles float64) *FacilityIndex {
	if radiusMiles <= 0 {
		radiusMiles = DefaultRadiusMiles
	}
	return &FacilityIndex{facilities: facilities, radiusMiles: radiusMiles}
}

// LoadFacilityIndex reads the facility CSV from the asset store. The dataset
// is hand-maintained and descriptions regularly contain quoted cells with
// embedded newlines, so parsing goes through encoding/csv rather than line
// splitting.
//
// Expected columns: name, city, state, country, latitude, longitude.
// A header row is detected and skipped; rows with malformed coordinates are
// dropped.
func LoadFacilityIndex(ctx context.Context, assets assetstore.Store, key string, radiusMiles float64) (*FacilityIndex, error) {
	reader, err := assets.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open facility dataset: %w", err)
	}
	defer reader.Close()
	return parseFacilityCSV(reader, radiusMiles)
}

func parseFacilityCSV(r io.Reader, radiusMiles float64) (*FacilityIndex, error) {
	if radiusMiles <= 0 {
		radiusMiles = DefaultRadiusMiles
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var facilities []Facility
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse facility csv: %w", err)
		}
		if len(record) < 6 {
			continue
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64); err != nil {
				continue // header row
			}
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		long, longErr := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
		if latErr != nil || longErr != nil {
			continue
		}
		facilities = append(facilities, Facility{
			Name:      strings.TrimSpace(record[0]),
			City:      strings.TrimSpace(record[1]),
			State:     strings.TrimSpace(record[2]),
			Country:   strings.TrimSpace(record[3]),
			Latitude:  lat,
			Longitude: long,
		})
	}
	return &FacilityIndex{facilities: facilities, radiusMiles: radiusMiles}, nil
}

// Nearest returns the facilities within the radius of the given point,
// closest first, up to limit entries. An empty result means the caller
// should offer the generic fallback (online events) instead of failing.
func (idx *FacilityIndex) Nearest(lat, long float64, limit int) []Facility {
	if limit <= 0 {
		limit = 3
	}
	var within []Facility
	for _, f := range idx.facilities {
		d := Haversine(lat, long, f.Latitude, f.Longitude)
		if d <= idx.radiusMiles {
			f.Distance = d
			within = append(within, f)
		}
	}
	sort.Slice(within, func(i, j int) bool {
		return within[i].Distance < within[j].Distance
	})
	if len(within) > limit {
		within = within[:limit]
	}
	return within
}

func (idx *FacilityIndex) Len() int {
	return len(idx.facilities)
}

// Haversine computes the great-circle distance in miles between two points.
func Haversine(lat1, long1, lat2, long2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLong := toRad(long2 - long1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLong/2)*math.Sin(dLong/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}
