//nolint:revive // types is a standard Go package name pattern
package types

// FeatureCollection is the output of the feature-collection phase.
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// StrategicAlignment is the output of the strategic-alignment phase.
type StrategicAlignment struct {
	Overrides []StrategicOverride `json:"overrides"`
}
