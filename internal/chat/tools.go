package chat

import (
	"context"
	"fmt"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/geotools"
)

const nearestFacilityLimit = 3

// locationTools builds the tool set bound to one request. The tools close
// over the request metadata so the model never sees raw headers or IPs.
func (s *Service) locationTools(meta geotools.RequestMeta) []ai.Tool {
	return []ai.Tool{
		{
			Name: "get_user_location",
			Description: "Returns the user's current city and approximate coordinates. " +
				"Call this before searching for nearby facilities when the user has not named a place.",
			Handler: func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
				loc, err := s.locator.Locate(ctx, meta)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"city":      loc.City,
					"latitude":  loc.Latitude,
					"longitude": loc.Longitude,
					"confirmed": loc.Confirmed,
				}, nil
			},
		},
		{
			Name: "find_nearest_facility",
			Description: "Finds the closest facilities to the given coordinates or named place, " +
				"ordered by distance in miles. Returns an online alternative when none is within the service radius.",
			Params: map[string]ai.ToolParam{
				"latitude":  {Type: "number", Description: "Latitude in decimal degrees"},
				"longitude": {Type: "number", Description: "Longitude in decimal degrees"},
				"place":     {Type: "string", Description: "A city or place name, used when coordinates are unknown"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				lat, long, err := s.resolveCoordinates(ctx, args)
				if err != nil {
					return nil, err
				}
				nearest := s.facilities.Nearest(lat, long, nearestFacilityLimit)
				if len(nearest) == 0 {
					return map[string]interface{}{
						"found":      false,
						"message":    "no facility within the service radius",
						"online_url": s.site.Facility.FallbackURL,
					}, nil
				}
				items := make([]interface{}, 0, len(nearest))
				for _, f := range nearest {
					items = append(items, map[string]interface{}{
						"name":           f.Name,
						"city":           f.City,
						"state":          f.State,
						"country":        f.Country,
						"distance_miles": f.Distance,
					})
				}
				return map[string]interface{}{"found": true, "facilities": items}, nil
			},
		},
	}
}

// resolveCoordinates takes explicit coordinates when the model supplies them
// and geocodes a place name otherwise.
func (s *Service) resolveCoordinates(ctx context.Context, args map[string]interface{}) (float64, float64, error) {
	lat, latOK := floatArg(args, "latitude")
	long, longOK := floatArg(args, "longitude")
	if latOK && longOK {
		return lat, long, nil
	}
	if place, ok := args["place"].(string); ok && place != "" {
		return s.locator.Geocode(ctx, place)
	}
	return 0, 0, fmt.Errorf("latitude/longitude or place is required")
}

func floatArg(args map[string]interface{}, name string) (float64, bool) {
	switch v := args[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
