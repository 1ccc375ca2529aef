package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/justsurfingit/resume-builder/pkg/resume"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yosssi/gohtml"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// page sizes in millimetres
var pageSizes = map[string][2]int{
	"a4":     {210, 297},
	"letter": {216, 279},
}

const maxLevel = 5

type RenderService struct {
	policy *bluemonday.Policy
	tmpl   *template.Template
}

func NewRenderService() (*RenderService, error) {
	tmpl, err := template.New("resume").Funcs(template.FuncMap{
		"levels": func(n int) []bool {
			out := make([]bool, maxLevel)
			for i := range out {
				out[i] = i < n
			}
			return out
		},
		"percent": func(n int) int { return n * 100 / maxLevel },
		"sectionArgs": func(s sectionView, levelType string) map[string]any {
			return map[string]any{"Section": s, "LevelType": levelType}
		},
		"levelArgs": func(level int, levelType string) map[string]any {
			return map[string]any{"Level": level, "Type": levelType}
		},
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing resume templates: %w", err)
	}
	return &RenderService{policy: bluemonday.UGCPolicy(), tmpl: tmpl}, nil
}

type itemView struct {
	Title       string
	Subtitle    string
	Date        string
	Location    string
	Website     resume.URL
	Description template.HTML
	Level       int
	Keywords    []string
}

type sectionView struct {
	ID      string
	Title   string
	Columns int
	Content template.HTML
	Items   []itemView
}

type pageView struct {
	FullWidth bool
	Main      []sectionView
	Sidebar   []sectionView
}

type documentView struct {
	Data      *resume.ResumeData
	Template  resume.Template
	Initials  string
	Pages     []pageView
	Vars      template.CSS
	CustomCSS template.CSS
	LevelType string
}

// Render turns a resume document into a complete, printable HTML page.
func (s *RenderService) Render(data *resume.ResumeData) ([]byte, error) {
	tpl, ok := resume.LookupTemplate(data.Metadata.Template)
	if !ok {
		tpl, _ = resume.LookupTemplate(resume.DefaultTemplate)
	}

	view := documentView{
		Data:      data,
		Template:  tpl,
		Initials:  resume.Initials(data.Basics.Name),
		Vars:      cssVariables(data),
		LevelType: data.Metadata.Design.Level.Type,
	}
	if data.Metadata.CSS.Enabled {
		view.CustomCSS = template.CSS(strings.ReplaceAll(data.Metadata.CSS.Value, "</", "<\\/"))
	}

	sections := s.collectSections(data)
	for _, p := range data.Metadata.Layout.Pages {
		pv := pageView{FullWidth: p.FullWidth || !tpl.SupportsSidebar()}
		for _, id := range p.Main {
			if sv, ok := sections[id]; ok {
				pv.Main = append(pv.Main, sv)
			}
		}
		for _, id := range p.Sidebar {
			if sv, ok := sections[id]; ok {
				if pv.FullWidth {
					pv.Main = append(pv.Main, sv)
				} else {
					pv.Sidebar = append(pv.Sidebar, sv)
				}
			}
		}
		view.Pages = append(view.Pages, pv)
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "document.html.tmpl", view); err != nil {
		return nil, fmt.Errorf("rendering resume: %w", err)
	}
	return gohtml.FormatBytes(buf.Bytes()), nil
}

func cssVariables(d *resume.ResumeData) template.CSS {
	size, ok := pageSizes[d.Metadata.Page.Format]
	if !ok {
		size = pageSizes["a4"]
	}
	m := d.Metadata
	t := m.Typography
	vars := []string{
		fmt.Sprintf("--page-width: %dmm", size[0]),
		fmt.Sprintf("--page-height: %dmm", size[1]),
		fmt.Sprintf("--margin-x: %dpt", m.Page.MarginX),
		fmt.Sprintf("--margin-y: %dpt", m.Page.MarginY),
		fmt.Sprintf("--sidebar-width: %g%%", m.Layout.SidebarWidth),
		"--color-primary: " + cssValue(m.Design.Colors.Primary),
		"--color-text: " + cssValue(m.Design.Colors.Text),
		"--color-background: " + cssValue(m.Design.Colors.Background),
		"--body-font: " + cssFont(t.Body.FontFamily),
		fmt.Sprintf("--body-size: %gpt", t.Body.FontSize),
		fmt.Sprintf("--body-line-height: %g", t.Body.LineHeight),
		"--heading-font: " + cssFont(t.Heading.FontFamily),
		fmt.Sprintf("--heading-size: %gpt", t.Heading.FontSize),
		fmt.Sprintf("--heading-line-height: %g", t.Heading.LineHeight),
	}
	return template.CSS(strings.Join(vars, "; ") + ";")
}

// cssValue drops characters that could end the declaration.
func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\'':
			return -1
		}
		return r
	}, v)
}

func cssFont(family string) string {
	return "'" + cssValue(family) + "', serif"
}

func (s *RenderService) rich(html string) template.HTML {
	return template.HTML(s.policy.Sanitize(html))
}

// collectSections builds the visible, non-empty sections keyed by id.
func (s *RenderService) collectSections(d *resume.ResumeData) map[string]sectionView {
	out := make(map[string]sectionView)

	if !d.Summary.Hidden && strings.TrimSpace(d.Summary.Content) != "" {
		out[resume.SummaryID] = sectionView{ID: resume.SummaryID, Title: d.Summary.Title, Columns: d.Summary.Columns, Content: s.rich(d.Summary.Content)}
	}

	sec := &d.Sections
	add(out, resume.ProfilesID, sec.Profiles, func(p resume.Profile) (bool, itemView) {
		return p.Hidden, itemView{Title: p.Network, Subtitle: p.Username, Website: p.Website}
	})
	add(out, resume.ExperienceID, sec.Experience, func(e resume.Experience) (bool, itemView) {
		return e.Hidden, itemView{Title: e.Company, Subtitle: e.Position, Date: e.Period, Location: e.Location, Website: e.Website, Description: s.rich(e.Description)}
	})
	add(out, resume.EducationID, sec.Education, func(e resume.Education) (bool, itemView) {
		subtitle := strings.TrimSpace(strings.Join([]string{e.Degree, e.Area}, " "))
		if e.Grade != "" {
			subtitle += " (" + e.Grade + ")"
		}
		return e.Hidden, itemView{Title: e.School, Subtitle: subtitle, Date: e.Period, Location: e.Location, Website: e.Website, Description: s.rich(e.Description)}
	})
	add(out, resume.ProjectsID, sec.Projects, func(p resume.Project) (bool, itemView) {
		return p.Hidden, itemView{Title: p.Name, Date: p.Period, Website: p.Website, Description: s.rich(p.Description)}
	})
	add(out, resume.SkillsID, sec.Skills, func(k resume.Skill) (bool, itemView) {
		return k.Hidden, itemView{Title: k.Name, Subtitle: k.Proficiency, Level: k.Level, Keywords: k.Keywords}
	})
	add(out, resume.LanguagesID, sec.Languages, func(l resume.Language) (bool, itemView) {
		return l.Hidden, itemView{Title: l.Language, Subtitle: l.Fluency, Level: l.Level}
	})
	add(out, resume.InterestsID, sec.Interests, func(i resume.Interest) (bool, itemView) {
		return i.Hidden, itemView{Title: i.Name, Keywords: i.Keywords}
	})
	add(out, resume.AwardsID, sec.Awards, func(a resume.Award) (bool, itemView) {
		return a.Hidden, itemView{Title: a.Title, Subtitle: a.Awarder, Date: a.Date, Website: a.Website, Description: s.rich(a.Description)}
	})
	add(out, resume.CertificationsID, sec.Certifications, func(c resume.Certification) (bool, itemView) {
		return c.Hidden, itemView{Title: c.Title, Subtitle: c.Issuer, Date: c.Date, Website: c.Website, Description: s.rich(c.Description)}
	})
	add(out, resume.PublicationsID, sec.Publications, func(p resume.Publication) (bool, itemView) {
		return p.Hidden, itemView{Title: p.Title, Subtitle: p.Publisher, Date: p.Date, Website: p.Website, Description: s.rich(p.Description)}
	})
	add(out, resume.VolunteerID, sec.Volunteer, func(v resume.Volunteer) (bool, itemView) {
		return v.Hidden, itemView{Title: v.Organization, Date: v.Period, Location: v.Location, Website: v.Website, Description: s.rich(v.Description)}
	})
	add(out, resume.ReferencesID, sec.References, func(r resume.Reference) (bool, itemView) {
		return r.Hidden, itemView{Title: r.Name, Description: s.rich(r.Description)}
	})

	for _, cs := range d.CustomSections {
		add(out, cs.ID, resume.Section[resume.CustomItem]{Title: cs.Title, Columns: cs.Columns, Hidden: cs.Hidden, Items: cs.Items}, func(c resume.CustomItem) (bool, itemView) {
			return c.Hidden, itemView{Title: c.Title, Subtitle: c.Subtitle, Date: c.Date, Location: c.Location, Website: c.Website, Description: s.rich(c.Description)}
		})
	}
	return out
}

func add[T any](out map[string]sectionView, id string, sec resume.Section[T], view func(T) (bool, itemView)) {
	if sec.Hidden {
		return
	}
	sv := sectionView{ID: id, Title: sec.Title, Columns: sec.Columns}
	for _, item := range sec.Items {
		if hidden, iv := view(item); !hidden {
			sv.Items = append(sv.Items, iv)
		}
	}
	if len(sv.Items) > 0 {
		out[id] = sv
	}
}
