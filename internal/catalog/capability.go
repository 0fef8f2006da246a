package catalog

// Capability names an operation one or more data sources can satisfy.
// The set is closed: descriptors carrying an unknown capability are rejected
// at load time so typos surface at startup rather than at call time.
type Capability string

const (
	CapTaxonomyMap      Capability = "taxonomy-map"
	CapCodeSearch       Capability = "code-search"
	CapLiteratureSearch Capability = "literature-search"
	CapCarbonIntensity  Capability = "carbon-intensity"
	CapChartRender      Capability = "chart-render"
	CapSynthesis        Capability = "synthesis"
)

// Capabilities returns every known capability in stable order.
func Capabilities() []Capability {
	return []Capability{
		CapTaxonomyMap,
		CapCodeSearch,
		CapLiteratureSearch,
		CapCarbonIntensity,
		CapChartRender,
		CapSynthesis,
	}
}

// Known reports whether c is a member of the closed capability set.
func Known(c Capability) bool {
	switch c {
	case CapTaxonomyMap, CapCodeSearch, CapLiteratureSearch,
		CapCarbonIntensity, CapChartRender, CapSynthesis:
		return true
	default:
		return false
	}
}

func (c Capability) String() string {
	return string(c)
}
