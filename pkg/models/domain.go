package models

// Domain is a category of expertise used to select an agent's behavior,
// prompt template, and backing model.
type Domain string

const (
	// DomainCommonsense covers general reasoning and common knowledge.
	DomainCommonsense Domain = "commonsense"
	// DomainMedical covers healthcare, diagnosis, and clinical tasks.
	DomainMedical Domain = "medical"
	// DomainLaw covers legal analysis, contracts, and regulations.
	DomainLaw Domain = "law"
	// DomainMath covers calculations and quantitative reasoning.
	DomainMath Domain = "math"
)

// Valid returns true if the domain is a known value.
func (d Domain) Valid() bool {
	switch d {
	case DomainCommonsense, DomainMedical, DomainLaw, DomainMath:
		return true
	default:
		return false
	}
}

// AllDomains lists every known domain in merge-priority order.
func AllDomains() []Domain {
	return []Domain{DomainMedical, DomainLaw, DomainMath, DomainCommonsense}
}
