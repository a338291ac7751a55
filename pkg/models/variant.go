package models

// Variant is a size/cost tier of model chosen for a given subtask.
type Variant string

const (
	// VariantSmall is the lightweight, cheap model tier.
	VariantSmall Variant = "small"
	// VariantLarge is the capable, expensive model tier.
	VariantLarge Variant = "large"
)

// Valid returns true if the variant is a known value.
func (v Variant) Valid() bool {
	switch v {
	case VariantSmall, VariantLarge:
		return true
	default:
		return false
	}
}
