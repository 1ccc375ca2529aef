package resume

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes data as JSON. Nil lists are written as empty arrays so
// clients never have to tell null and [] apart.
func Marshal(data *ResumeData) ([]byte, error) {
	normalize(data)
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshalling resume data: %w", err)
	}
	return raw, nil
}

// Unmarshal decodes raw on top of Default, so keys missing from older
// documents keep their default values.
func Unmarshal(raw []byte) (*ResumeData, error) {
	data := Default()
	// decoding into a non-empty slice reuses its elements
	data.Metadata.Layout.Pages = nil
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("unmarshalling resume data: %w", err)
	}
	if len(data.Metadata.Layout.Pages) == 0 {
		data.Metadata.Layout.Pages = Default().Metadata.Layout.Pages
	}
	normalize(data)
	return data, nil
}

func normalize(d *ResumeData) {
	if d.Basics.CustomFields == nil {
		d.Basics.CustomFields = []CustomField{}
	}
	if d.CustomSections == nil {
		d.CustomSections = []CustomSection{}
	}
	for i := range d.CustomSections {
		if d.CustomSections[i].Items == nil {
			d.CustomSections[i].Items = []CustomItem{}
		}
	}

	s := &d.Sections
	s.Profiles.Items = nonNil(s.Profiles.Items)
	s.Experience.Items = nonNil(s.Experience.Items)
	s.Education.Items = nonNil(s.Education.Items)
	s.Projects.Items = nonNil(s.Projects.Items)
	s.Skills.Items = nonNil(s.Skills.Items)
	s.Languages.Items = nonNil(s.Languages.Items)
	s.Interests.Items = nonNil(s.Interests.Items)
	s.Awards.Items = nonNil(s.Awards.Items)
	s.Certifications.Items = nonNil(s.Certifications.Items)
	s.Publications.Items = nonNil(s.Publications.Items)
	s.Volunteer.Items = nonNil(s.Volunteer.Items)
	s.References.Items = nonNil(s.References.Items)

	for i := range s.Skills.Items {
		s.Skills.Items[i].Keywords = nonNil(s.Skills.Items[i].Keywords)
	}
	for i := range s.Interests.Items {
		s.Interests.Items[i].Keywords = nonNil(s.Interests.Items[i].Keywords)
	}

	for i := range d.Metadata.Layout.Pages {
		p := &d.Metadata.Layout.Pages[i]
		p.Main = nonNil(p.Main)
		p.Sidebar = nonNil(p.Sidebar)
	}
	d.Metadata.Typography.Body.FontWeights = nonNil(d.Metadata.Typography.Body.FontWeights)
	d.Metadata.Typography.Heading.FontWeights = nonNil(d.Metadata.Typography.Heading.FontWeights)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
