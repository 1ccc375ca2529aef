package resume

import "slices"

// Sidebar positions a template can use.
const (
	SidebarNone  = "none"
	SidebarLeft  = "left"
	SidebarRight = "right"
)

// Template describes a named visual layout.
type Template struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	SidebarPosition string   `json:"sidebarPosition"`
	HeaderAccent    bool     `json:"headerAccent"`
	Tags            []string `json:"tags"`
}

// SupportsSidebar reports whether sidebar sections are drawn in their own column.
func (t Template) SupportsSidebar() bool {
	return t.SidebarPosition != SidebarNone
}

var templates = []Template{
	{ID: "azurill", Name: "Azurill", SidebarPosition: SidebarLeft, Tags: []string{"Two Column", "Colorful"}},
	{ID: "bronzor", Name: "Bronzor", SidebarPosition: SidebarNone, Tags: []string{"ATS Friendly", "Single Column"}},
	{ID: "chikorita", Name: "Chikorita", SidebarPosition: SidebarRight, HeaderAccent: true, Tags: []string{"Two Column", "Colorful"}},
	{ID: "ditto", Name: "Ditto", SidebarPosition: SidebarLeft, HeaderAccent: true, Tags: []string{"Two Column", "Banner"}},
	{ID: "gengar", Name: "Gengar", SidebarPosition: SidebarLeft, HeaderAccent: true, Tags: []string{"Two Column", "Colorful"}},
	{ID: "glalie", Name: "Glalie", SidebarPosition: SidebarLeft, Tags: []string{"Two Column", "Minimal"}},
	{ID: "kakuna", Name: "Kakuna", SidebarPosition: SidebarNone, Tags: []string{"Single Column", "Centered"}},
	{ID: "lapras", Name: "Lapras", SidebarPosition: SidebarNone, Tags: []string{"Single Column", "Cards"}},
	{ID: "leafish", Name: "Leafish", SidebarPosition: SidebarRight, HeaderAccent: true, Tags: []string{"Two Column", "Banner"}},
	{ID: "onyx", Name: "Onyx", SidebarPosition: SidebarNone, Tags: []string{"ATS Friendly", "Monochrome", "Single Column", "Multi-Page Resumes"}},
	{ID: "pikachu", Name: "Pikachu", SidebarPosition: SidebarLeft, HeaderAccent: true, Tags: []string{"Two Column", "Colorful"}},
	{ID: "rhyhorn", Name: "Rhyhorn", SidebarPosition: SidebarNone, Tags: []string{"ATS Friendly", "Single Column"}},
}

// Templates returns every available template, sorted by id.
func Templates() []Template {
	return slices.Clone(templates)
}

// LookupTemplate returns the template with the given id.
func LookupTemplate(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
