package browse

// ClusterRadius maps zoom to the marker cluster radius in pixels. Smaller
// radius at higher zoom means less aggressive grouping as the user zooms in.
// The table is fixed; clients rely on the exact values for visual parity.
func ClusterRadius(zoom float64) int {
	switch {
	case zoom >= 16:
		return 30
	case zoom >= 14:
		return 40
	case zoom >= 12:
		return 50
	default:
		return 70
	}
}
