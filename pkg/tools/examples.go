package tools

// GetToolUsageExample returns an example JSON snippet for using a specific tool.
// It is attached to input errors so callers can correct their arguments.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"calculate_carbon": `{
  "trip": {"type": "train", "passengers": 1},
  "path": [[48.8443, 2.3744], [45.7606, 4.8593]],
  "detect_countries": true
}`,
		"batch_calculate_carbon": `{
  "segments": [
    {"trip": {"type": "car", "trip_length": 12000}},
    {"trip": {"type": "air", "material_type": "A320"}, "path": [[48.8566, 2.3522], [51.5074, -0.1278]]}
  ]
}`,
		"country_breakdown": `{
  "path": [[48.8443, 2.3744], [47.5596, 7.5886]],
  "type": "train",
  "details": {"powerType": "auto", "electrified": [[0, 1, "contact_line"]]}
}`,
		"country_stats": `{
  "trips": [{"countries": {"FR": 120000, "CH": {"elec": 30000, "nonelec": 0}}, "past": true}]
}`,
		"geo_distance": `{
  "from": {"latitude": 40.7128, "longitude": -74.0060},
  "to": {"latitude": 40.7580, "longitude": -73.9855}
}`,
		"great_circle_interpolate": `{
  "from": {"latitude": 40.6413, "longitude": -73.7781},
  "to": {"latitude": 51.4700, "longitude": -0.4543},
  "max_distance_km": 50
}`,
		"densify_path": `{
  "points": [[40.6413, -73.7781], [51.4700, -0.4543]],
  "max_distance_km": 50
}`,
		"grid_update": `{
  "trips": [{"path": [[48.85, 2.35], [45.76, 4.86]], "type": "train", "created_at": "2024-05-01T08:00:00Z"}]
}`,
		"grid_coverage": `{
  "grid": {"cells": [{"lat": 48, "lng": 2, "status": "stopped"}]}
}`,
		"polyline_decode": `{
  "polyline": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@",
  "precision": 5
}`,
		"polyline_encode": `{
  "points": [{"latitude": 38.5, "longitude": -120.2}, {"latitude": 40.7, "longitude": -120.95}]
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}
	return "{}"
}
