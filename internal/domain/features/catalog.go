package features

import "schoolsite-app/internal/domain/plans"

// Feature is a named site capability ("blog", "parentsArea", ...).
type Feature string

const (
	Blog                 Feature = "blog"
	Events               Feature = "events"
	AboutUs              Feature = "aboutUs"
	Documents            Feature = "documents"
	Teachers             Feature = "teachers"
	Projects             Feature = "projects"
	EducationalOfferings Feature = "educationalOfferings"
	Calendar             Feature = "calendar"
	Menu                 Feature = "menu"
	ParentsArea          Feature = "parentsArea"
	Communications       Feature = "communications"
	EmailCommunications  Feature = "emailCommunications"
)

// Definition is one catalogue row.
type Definition struct {
	Feature      Feature    `json:"feature"`
	StorageKey   string     `json:"storageKey"`
	RequiredTier plans.Tier `json:"requiredTier"`
	DefaultOn    bool       `json:"defaultOn"`
	// Page is the public route segment guarded by the feature, if any.
	Page string `json:"page,omitempty"`
}

// Catalog is the static feature table. Build one with NewCatalog; the
// engine keeps its own copy so later edits to the slice have no effect.
type Catalog struct {
	defs  []Definition
	index map[Feature]int
	pages map[string]Feature
}

func NewCatalog(defs []Definition) Catalog {
	c := Catalog{
		defs:  make([]Definition, len(defs)),
		index: make(map[Feature]int, len(defs)),
		pages: make(map[string]Feature),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		c.index[d.Feature] = i
		if d.Page != "" {
			c.pages[d.Page] = d.Feature
		}
	}
	return c
}

// DefaultCatalog is the platform's feature table.
func DefaultCatalog() Catalog {
	return NewCatalog([]Definition{
		{Blog, "showBlog", plans.TierStarter, true, "blog"},
		{Events, "showEvents", plans.TierStarter, true, "eventi"},
		{AboutUs, "showAboutUs", plans.TierStarter, true, "chi-siamo"},
		{Documents, "showDocuments", plans.TierStarter, true, "documenti"},
		{Teachers, "showTeachers", plans.TierStarter, true, "docenti"},

		{Projects, "showProjects", plans.TierProfessional, true, "progetti"},
		{EducationalOfferings, "showEducationalOfferings", plans.TierProfessional, true, "offerta-formativa"},
		{Calendar, "showCalendar", plans.TierProfessional, true, "calendario"},
		{Menu, "showMenu", plans.TierProfessional, true, "mensa"},
		{ParentsArea, "showParentsArea", plans.TierProfessional, false, "area-genitori"},

		{Communications, "showCommunications", plans.TierEnterprise, false, "comunicazioni"},
		{EmailCommunications, "enableEmailCommunications", plans.TierEnterprise, false, ""},
	})
}

func (c Catalog) Lookup(f Feature) (Definition, bool) {
	i, ok := c.index[f]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// ForPage maps a public route segment ("chi-siamo") to its feature.
func (c Catalog) ForPage(page string) (Feature, bool) {
	f, ok := c.pages[page]
	return f, ok
}

// Definitions returns the rows in catalogue order.
func (c Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c Catalog) clone() Catalog {
	return NewCatalog(c.defs)
}
