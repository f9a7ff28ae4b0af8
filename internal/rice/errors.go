package rice

import "fmt"

// InputError reports a feature that cannot be scored.
type InputError struct {
	FeatureID string
	Field     string
	Message   string
}

func (e *InputError) Error() string {
	if e.FeatureID == "" {
		return fmt.Sprintf("invalid feature input: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid feature %s: %s: %s", e.FeatureID, e.Field, e.Message)
}
