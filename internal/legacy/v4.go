// Package legacy reads data written by the previous major version: its
// resume JSON format and its database schema.
package legacy

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/justsurfingit/resume-builder/pkg/resume"
)

type v4URL struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

func (u v4URL) toURL() resume.URL {
	return resume.URL{URL: u.Href, Label: u.Label}
}

// v4Item is the union of the fields used by every v4 section item.
type v4Item struct {
	ID           string   `json:"id"`
	Visible      *bool    `json:"visible"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Summary      string   `json:"summary"`
	Date         string   `json:"date"`
	Location     string   `json:"location"`
	URL          v4URL    `json:"url"`
	Keywords     []string `json:"keywords"`
	Level        int      `json:"level"`
	Icon         string   `json:"icon"`
	Network      string   `json:"network"`
	Username     string   `json:"username"`
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	Institution  string   `json:"institution"`
	StudyType    string   `json:"studyType"`
	Area         string   `json:"area"`
	Score        string   `json:"score"`
	Awarder      string   `json:"awarder"`
	Issuer       string   `json:"issuer"`
	Publisher    string   `json:"publisher"`
	Organization string   `json:"organization"`
}

type v4Section struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns int      `json:"columns"`
	Visible *bool    `json:"visible"`
	Content string   `json:"content"`
	Items   []v4Item `json:"items"`
}

type v4Data struct {
	Basics struct {
		Name         string `json:"name"`
		Headline     string `json:"headline"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Location     string `json:"location"`
		URL          v4URL  `json:"url"`
		CustomFields []struct {
			ID    string `json:"id"`
			Icon  string `json:"icon"`
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"customFields"`
		Picture struct {
			URL          string  `json:"url"`
			Size         int     `json:"size"`
			AspectRatio  float64 `json:"aspectRatio"`
			BorderRadius int     `json:"borderRadius"`
			Effects      struct {
				Hidden bool `json:"hidden"`
				Border bool `json:"border"`
			} `json:"effects"`
		} `json:"picture"`
	} `json:"basics"`
	Sections struct {
		Summary        v4Section            `json:"summary"`
		Awards         v4Section            `json:"awards"`
		Certifications v4Section            `json:"certifications"`
		Education      v4Section            `json:"education"`
		Experience     v4Section            `json:"experience"`
		Volunteer      v4Section            `json:"volunteer"`
		Interests      v4Section            `json:"interests"`
		Languages      v4Section            `json:"languages"`
		Profiles       v4Section            `json:"profiles"`
		Projects       v4Section            `json:"projects"`
		Publications   v4Section            `json:"publications"`
		References     v4Section            `json:"references"`
		Skills         v4Section            `json:"skills"`
		Custom         map[string]v4Section `json:"custom"`
	} `json:"sections"`
	Metadata struct {
		Template string       `json:"template"`
		Layout   [][][]string `json:"layout"`
		CSS      struct {
			Value   string `json:"value"`
			Visible bool   `json:"visible"`
		} `json:"css"`
		Page struct {
			Margin int    `json:"margin"`
			Format string `json:"format"`
		} `json:"page"`
		Theme struct {
			Background string `json:"background"`
			Text       string `json:"text"`
			Primary    string `json:"primary"`
		} `json:"theme"`
		Typography struct {
			Font struct {
				Family   string   `json:"family"`
				Variants []string `json:"variants"`
				Size     float64  `json:"size"`
			} `json:"font"`
			LineHeight float64 `json:"lineHeight"`
		} `json:"typography"`
		Notes string `json:"notes"`
	} `json:"metadata"`
}

const customLayoutPrefix = "custom."

func hidden(visible *bool) bool {
	return visible != nil && !*visible
}

func itemID(id string) string {
	if id == "" {
		return resume.NewID()
	}
	return id
}

func section[T any](dst *resume.Section[T], src v4Section, conv func(v4Item) T) {
	if src.Name != "" {
		dst.Title = src.Name
	}
	if src.Columns > 0 {
		dst.Columns = min(src.Columns, 6)
	}
	dst.Hidden = hidden(src.Visible)
	for _, it := range src.Items {
		dst.Items = append(dst.Items, conv(it))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clamp[T int | float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// ImportV4 converts a resume exported by the previous major version into
// the current document format. The result is validated.
func ImportV4(raw []byte) (*resume.ResumeData, error) {
	var v v4Data
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parsing v4 resume: %w", err)
	}

	d := resume.Default()

	b := v.Basics
	d.Basics.Name = b.Name
	d.Basics.Headline = b.Headline
	d.Basics.Email = b.Email
	d.Basics.Phone = b.Phone
	d.Basics.Location = b.Location
	d.Basics.Website = b.URL.toURL()
	for _, f := range b.CustomFields {
		d.Basics.CustomFields = append(d.Basics.CustomFields, resume.CustomField{
			ID:   itemID(f.ID),
			Icon: f.Icon,
			Text: firstNonEmpty(f.Value, f.Name),
		})
	}

	d.Picture.URL = b.Picture.URL
	d.Picture.Hidden = b.Picture.Effects.Hidden
	if b.Picture.Size > 0 {
		d.Picture.Size = clamp(b.Picture.Size, 32, 512)
	}
	if b.Picture.AspectRatio > 0 {
		d.Picture.AspectRatio = clamp(b.Picture.AspectRatio, 0.5, 2.5)
	}
	d.Picture.BorderRadius = clamp(b.Picture.BorderRadius, 0, 100)
	if b.Picture.Effects.Border {
		d.Picture.BorderWidth = 1
	}

	s := v.Sections
	if s.Summary.Name != "" {
		d.Summary.Title = s.Summary.Name
	}
	if s.Summary.Columns > 0 {
		d.Summary.Columns = min(s.Summary.Columns, 6)
	}
	d.Summary.Hidden = hidden(s.Summary.Visible)
	d.Summary.Content = s.Summary.Content

	out := &d.Sections
	section(&out.Profiles, s.Profiles, func(it v4Item) resume.Profile {
		return resume.Profile{ID: itemID(it.ID), Hidden: hidden(it.Visible), Icon: it.Icon, Network: it.Network, Username: it.Username, Website: it.URL.toURL()}
	})
	section(&out.Experience, s.Experience, func(it v4Item) resume.Experience {
		return resume.Experience{ID: itemID(it.ID), Hidden: hidden(it.Visible), Company: it.Company, Position: it.Position, Location: it.Location, Period: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.Education, s.Education, func(it v4Item) resume.Education {
		return resume.Education{ID: itemID(it.ID), Hidden: hidden(it.Visible), School: it.Institution, Degree: it.StudyType, Area: it.Area, Grade: it.Score, Location: it.Location, Period: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.Projects, s.Projects, func(it v4Item) resume.Project {
		return resume.Project{ID: itemID(it.ID), Hidden: hidden(it.Visible), Name: it.Name, Period: it.Date, Website: it.URL.toURL(), Description: firstNonEmpty(it.Summary, it.Description)}
	})
	section(&out.Skills, s.Skills, func(it v4Item) resume.Skill {
		return resume.Skill{ID: itemID(it.ID), Hidden: hidden(it.Visible), Name: it.Name, Proficiency: it.Description, Level: clamp(it.Level, 0, 5), Keywords: it.Keywords}
	})
	section(&out.Languages, s.Languages, func(it v4Item) resume.Language {
		return resume.Language{ID: itemID(it.ID), Hidden: hidden(it.Visible), Language: it.Name, Fluency: it.Description, Level: clamp(it.Level, 0, 5)}
	})
	section(&out.Interests, s.Interests, func(it v4Item) resume.Interest {
		return resume.Interest{ID: itemID(it.ID), Hidden: hidden(it.Visible), Name: it.Name, Keywords: it.Keywords}
	})
	section(&out.Awards, s.Awards, func(it v4Item) resume.Award {
		return resume.Award{ID: itemID(it.ID), Hidden: hidden(it.Visible), Title: it.Title, Awarder: it.Awarder, Date: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.Certifications, s.Certifications, func(it v4Item) resume.Certification {
		return resume.Certification{ID: itemID(it.ID), Hidden: hidden(it.Visible), Title: it.Name, Issuer: it.Issuer, Date: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.Publications, s.Publications, func(it v4Item) resume.Publication {
		return resume.Publication{ID: itemID(it.ID), Hidden: hidden(it.Visible), Title: it.Name, Publisher: it.Publisher, Date: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.Volunteer, s.Volunteer, func(it v4Item) resume.Volunteer {
		org := it.Organization
		if it.Position != "" {
			if org != "" {
				org += ", "
			}
			org += it.Position
		}
		return resume.Volunteer{ID: itemID(it.ID), Hidden: hidden(it.Visible), Organization: org, Location: it.Location, Period: it.Date, Website: it.URL.toURL(), Description: it.Summary}
	})
	section(&out.References, s.References, func(it v4Item) resume.Reference {
		return resume.Reference{ID: itemID(it.ID), Hidden: hidden(it.Visible), Name: it.Name, Description: firstNonEmpty(it.Summary, it.Description)}
	})

	// map iteration order is random; sort for stable output
	customIDs := make([]string, 0, len(s.Custom))
	for id := range s.Custom {
		customIDs = append(customIDs, id)
	}
	slices.Sort(customIDs)
	renamed := make(map[string]string, len(customIDs))
	for _, key := range customIDs {
		cs := s.Custom[key]
		id := firstNonEmpty(cs.ID, key)
		if slices.Contains(resume.BuiltinSectionIDs, id) {
			id = "custom-" + id
		}
		renamed[key] = id
		sec := resume.CustomSection{ID: id, Title: cs.Name, Columns: 1, Hidden: hidden(cs.Visible), Items: []resume.CustomItem{}}
		if cs.Columns > 0 {
			sec.Columns = min(cs.Columns, 6)
		}
		for _, it := range cs.Items {
			sec.Items = append(sec.Items, resume.CustomItem{
				ID:          itemID(it.ID),
				Hidden:      hidden(it.Visible),
				Title:       it.Name,
				Subtitle:    it.Description,
				Date:        it.Date,
				Location:    it.Location,
				Website:     it.URL.toURL(),
				Description: it.Summary,
			})
		}
		d.CustomSections = append(d.CustomSections, sec)
	}

	importMetadata(d, &v, renamed)

	if err := resume.Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func importMetadata(d *resume.ResumeData, v *v4Data, renamed map[string]string) {
	m := v.Metadata

	if _, ok := resume.LookupTemplate(m.Template); ok {
		d.Metadata.Template = m.Template
	}
	if m.Page.Format == "a4" || m.Page.Format == "letter" {
		d.Metadata.Page.Format = m.Page.Format
	}
	if m.Page.Margin > 0 {
		d.Metadata.Page.MarginX = clamp(m.Page.Margin, 0, 100)
		d.Metadata.Page.MarginY = clamp(m.Page.Margin, 0, 100)
	}
	d.Metadata.CSS = resume.CSS{Enabled: m.CSS.Visible, Value: m.CSS.Value}
	d.Metadata.Notes = m.Notes

	colors := &d.Metadata.Design.Colors
	colors.Primary = firstNonEmpty(m.Theme.Primary, colors.Primary)
	colors.Text = firstNonEmpty(m.Theme.Text, colors.Text)
	colors.Background = firstNonEmpty(m.Theme.Background, colors.Background)

	typo := &d.Metadata.Typography
	if f := m.Typography.Font; f.Family != "" {
		typo.Body.FontFamily = f.Family
		typo.Heading.FontFamily = f.Family
		if weights := fontWeights(f.Variants); len(weights) > 0 {
			typo.Body.FontWeights = weights
		}
		if f.Size > 0 {
			typo.Body.FontSize = clamp(f.Size, 6, 24)
			typo.Heading.FontSize = clamp(f.Size+4, 6, 24)
		}
	}
	if lh := m.Typography.LineHeight; lh > 0 {
		typo.Body.LineHeight = clamp(lh, 0.5, 4)
		typo.Heading.LineHeight = clamp(lh, 0.5, 4)
	}

	if len(m.Layout) == 0 {
		return
	}
	known := resume.SectionIDs(d)
	placed := map[string]bool{}
	keep := func(ids []string) []string {
		out := []string{}
		for _, id := range ids {
			if rest, ok := strings.CutPrefix(id, customLayoutPrefix); ok {
				id = renamed[rest]
			}
			if id == "" || placed[id] || !slices.Contains(known, id) {
				continue
			}
			placed[id] = true
			out = append(out, id)
		}
		return out
	}

	var pages []resume.PageLayout
	for _, page := range m.Layout {
		p := resume.PageLayout{Main: []string{}, Sidebar: []string{}}
		if len(page) > 0 {
			p.Main = keep(page[0])
		}
		if len(page) > 1 {
			p.Sidebar = keep(page[1])
		}
		pages = append(pages, p)
	}
	d.Metadata.Layout.Pages = pages
}

// fontWeights turns v4 font variants ("regular", "italic", "600") into
// numeric weights.
func fontWeights(variants []string) []string {
	var out []string
	for _, v := range variants {
		w := v
		if w == "regular" {
			w = "400"
		}
		if strings.Contains(w, "italic") || len(w) != 3 {
			continue
		}
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}
