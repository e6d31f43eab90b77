// Package demographics holds the static catalog of town constituencies.
// The catalog is process-wide and read-only; each new game seeds its own
// independent copies from it.
package demographics

import "github.com/talgya/townhall/internal/game"

// PriorityProfile describes the concern tags a demographic weighs when
// judging policy: primary concerns dominate, secondary concerns nudge,
// negative concerns provoke opposition.
type PriorityProfile struct {
	Primary   []string
	Secondary []string
	Negative  []string
}

// Registry is an immutable catalog of demographic definitions.
type Registry struct {
	defaults   map[string]*game.Demographic
	priorities map[string]PriorityProfile
	order      []string
}

// Default returns the built-in town registry.
func Default() *Registry {
	return defaultRegistry
}

// Seed returns fresh, independent demographic state for a new game.
// Mutating the returned map never touches the catalog.
func (r *Registry) Seed() map[string]*game.Demographic {
	out := make(map[string]*game.Demographic, len(r.defaults))
	for id, d := range r.defaults {
		out[id] = d.Clone()
	}
	return out
}

// Get returns an independent copy of a single catalog entry, or nil if the
// id is unknown.
func (r *Registry) Get(id string) *game.Demographic {
	d, ok := r.defaults[id]
	if !ok {
		return nil
	}
	return d.Clone()
}

// IDs returns catalog entry ids in their declared order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Priorities returns the priority profile for a demographic.
func (r *Registry) Priorities(id string) (PriorityProfile, bool) {
	p, ok := r.priorities[id]
	return p, ok
}

var defaultRegistry = &Registry{
	order: []string{"youth", "business", "seniors", "families"},
	defaults: map[string]*game.Demographic{
		"youth": {
			ID:                   "youth",
			Name:                 "Youth (18-30)",
			Happiness:            65,
			SupportLevel:         55,
			PopulationPercentage: 25,
			Concerns:             []string{"employment", "housing costs", "student debt", "climate change"},
			Persona: `You represent young adults aged 18-30 in this town. You are:
- Tech-savvy and environmentally conscious
- Concerned about employment opportunities and career prospects
- Struggling with housing affordability and student debt
- Supportive of progressive social policies and climate action
- Interested in education, innovation, and digital infrastructure
- Generally optimistic but frustrated with economic barriers
- Value diversity, inclusion, and social justice
- Prefer policies that invest in the future rather than maintain status quo`,
		},
		"business": {
			ID:                   "business",
			Name:                 "Business Owners",
			Happiness:            70,
			SupportLevel:         60,
			PopulationPercentage: 15,
			Concerns:             []string{"taxes", "regulations", "economic growth", "infrastructure"},
			Persona: `You represent local business owners and entrepreneurs. You are:
- Focused on economic growth and business-friendly policies
- Concerned about tax burden and regulatory compliance costs
- Support infrastructure improvements that benefit commerce
- Interested in policies that attract customers and workers
- Pragmatic about spending - support investments that boost economy
- Worried about competition from larger cities and online businesses
- Value stability and predictability in local government
- Support education and skills training that creates qualified workforce
- Generally conservative on fiscal issues but flexible on social issues`,
		},
		"seniors": {
			ID:                   "seniors",
			Name:                 "Seniors (65+)",
			Happiness:            60,
			SupportLevel:         65,
			PopulationPercentage: 25,
			Concerns:             []string{"healthcare", "fixed incomes", "public safety", "property taxes"},
			Persona: `You represent retirees and older residents of this town. You are:
- Living on fixed incomes and sensitive to any tax increase
- Deeply concerned about healthcare access and emergency services
- Protective of quiet neighborhoods and established community character
- Skeptical of large spending projects with distant payoffs
- Reliable voters who remember how past administrations performed
- Supportive of public safety, libraries, and senior services
- Wary of rapid change but appreciative of visible local improvements`,
		},
		"families": {
			ID:                   "families",
			Name:                 "Working Families",
			Happiness:            62,
			SupportLevel:         58,
			PopulationPercentage: 35,
			Concerns:             []string{"schools", "childcare", "cost of living", "commute times"},
			Persona: `You represent working parents and households with children. You are:
- Stretched between jobs, childcare, and household budgets
- Focused on school quality, parks, and safe streets above all
- Sensitive to the cost of living and utility rates
- Supportive of practical services over symbolic gestures
- Short on time and quick to judge policies by daily-life impact
- Interested in after-school programs and affordable childcare
- Moderate politically, swayed by whichever side delivers results`,
		},
	},
	priorities: map[string]PriorityProfile{
		"youth": {
			Primary:   []string{"employment", "housing", "education", "environment"},
			Secondary: []string{"technology", "social_programs", "transportation"},
			Negative:  []string{"excessive_spending", "conservative_social_policies"},
		},
		"business": {
			Primary:   []string{"economic_growth", "infrastructure", "tax_policy"},
			Secondary: []string{"education", "public_safety", "zoning"},
			Negative:  []string{"high_taxes", "excessive_regulation", "anti_business_policies"},
		},
		"seniors": {
			Primary:   []string{"healthcare", "public_safety", "tax_policy"},
			Secondary: []string{"transportation", "parks", "libraries"},
			Negative:  []string{"property_tax_hikes", "noisy_development"},
		},
		"families": {
			Primary:   []string{"schools", "childcare", "cost_of_living"},
			Secondary: []string{"parks", "public_safety", "transportation"},
			Negative:  []string{"school_cuts", "utility_rate_hikes"},
		},
	},
}
