package resume

import "github.com/google/uuid"

// DefaultTemplate is the template assigned to new resumes.
const DefaultTemplate = "onyx"

func newSection[T any](title string) Section[T] {
	return Section[T]{Title: title, Columns: 1, Items: []T{}}
}

// Default returns an empty resume document with default section titles,
// styling and a single page holding every built-in section.
func Default() *ResumeData {
	return &ResumeData{
		Picture: Picture{
			Size:         64,
			AspectRatio:  1,
			BorderRadius: 0,
			BorderColor:  "rgba(0, 0, 0, 0.5)",
			ShadowColor:  "rgba(0, 0, 0, 0.5)",
		},
		Basics: Basics{
			CustomFields: []CustomField{},
		},
		Summary: Summary{Title: "Summary", Columns: 1},
		Sections: Sections{
			Profiles:       newSection[Profile]("Profiles"),
			Experience:     newSection[Experience]("Experience"),
			Education:      newSection[Education]("Education"),
			Projects:       newSection[Project]("Projects"),
			Skills:         newSection[Skill]("Skills"),
			Languages:      newSection[Language]("Languages"),
			Interests:      newSection[Interest]("Interests"),
			Awards:         newSection[Award]("Awards"),
			Certifications: newSection[Certification]("Certifications"),
			Publications:   newSection[Publication]("Publications"),
			Volunteer:      newSection[Volunteer]("Volunteer"),
			References:     newSection[Reference]("References"),
		},
		CustomSections: []CustomSection{},
		Metadata: Metadata{
			Template: DefaultTemplate,
			Layout: Layout{
				SidebarWidth: 35,
				Pages: []PageLayout{
					{
						Main:    []string{ProfilesID, SummaryID, EducationID, ExperienceID, ProjectsID, VolunteerID, ReferencesID},
						Sidebar: []string{SkillsID, CertificationsID, AwardsID, LanguagesID, InterestsID, PublicationsID},
					},
				},
			},
			Page: Page{Format: "a4", MarginX: 14, MarginY: 12, Locale: "en-US"},
			Design: Design{
				Colors: Colors{
					Primary:    "rgba(220, 38, 38, 1)",
					Text:       "rgba(0, 0, 0, 1)",
					Background: "rgba(255, 255, 255, 1)",
				},
				Level: LevelDesign{Icon: "star", Type: "circle"},
			},
			Typography: Typography{
				Body:    Font{FontFamily: "IBM Plex Serif", FontWeights: []string{"400", "500"}, FontSize: 10, LineHeight: 1.5},
				Heading: Font{FontFamily: "IBM Plex Serif", FontWeights: []string{"600"}, FontSize: 14, LineHeight: 1.5},
			},
		},
	}
}

// NewID returns a fresh item id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Sample returns a filled-in document used when a resume is created with
// sample data.
func Sample() *ResumeData {
	d := Default()

	d.Basics = Basics{
		Name:     "David Kowalski",
		Headline: "Backend Engineer",
		Email:    "david.kowalski@example.com",
		Phone:    "+1 (555) 010-2040",
		Location: "Portland, OR",
		Website:  URL{URL: "https://kowalski.dev", Label: "kowalski.dev"},
		CustomFields: []CustomField{
			{ID: NewID(), Icon: "calendar", Text: "Available from March"},
		},
	}
	d.Summary.Content = "<p>Backend engineer with eight years of experience building payment and " +
		"logistics platforms. Comfortable owning services from schema design to on-call.</p>"

	d.Sections.Profiles.Items = []Profile{
		{ID: NewID(), Icon: "github", Network: "GitHub", Username: "dkowalski", Website: URL{URL: "https://github.com/dkowalski", Label: "github.com/dkowalski"}},
		{ID: NewID(), Icon: "linkedin", Network: "LinkedIn", Username: "david-kowalski", Website: URL{URL: "https://linkedin.com/in/david-kowalski"}},
	}
	d.Sections.Experience.Items = []Experience{
		{
			ID: NewID(), Company: "Freightline", Position: "Senior Backend Engineer", Location: "Remote",
			Period: "2021 - Present", Website: URL{URL: "https://freightline.example.com"},
			Description: "<ul><li>Led the rewrite of the dispatch service, cutting p99 latency by 60%.</li>" +
				"<li>Introduced contract tests between 14 services.</li></ul>",
		},
		{
			ID: NewID(), Company: "Paybridge", Position: "Software Engineer", Location: "Seattle, WA",
			Period: "2017 - 2021",
			Description: "<p>Built the reconciliation pipeline processing 3M transactions per day.</p>",
		},
	}
	d.Sections.Education.Items = []Education{
		{ID: NewID(), School: "Oregon State University", Degree: "B.Sc.", Area: "Computer Science", Grade: "3.7 GPA", Location: "Corvallis, OR", Period: "2013 - 2017"},
	}
	d.Sections.Projects.Items = []Project{
		{ID: NewID(), Name: "pgqueue", Period: "2022", Website: URL{URL: "https://github.com/dkowalski/pgqueue"}, Description: "<p>A job queue built on Postgres advisory locks.</p>"},
	}
	d.Sections.Skills.Items = []Skill{
		{ID: NewID(), Icon: "code", Name: "Go", Proficiency: "Expert", Level: 5, Keywords: []string{"gRPC", "concurrency", "profiling"}},
		{ID: NewID(), Icon: "database", Name: "PostgreSQL", Proficiency: "Advanced", Level: 4, Keywords: []string{"indexing", "replication"}},
		{ID: NewID(), Icon: "cloud", Name: "AWS", Proficiency: "Intermediate", Level: 3, Keywords: []string{"ECS", "S3", "SQS"}},
	}
	d.Sections.Languages.Items = []Language{
		{ID: NewID(), Language: "English", Fluency: "Native", Level: 5},
		{ID: NewID(), Language: "Polish", Fluency: "Conversational", Level: 3},
	}
	d.Sections.Interests.Items = []Interest{
		{ID: NewID(), Icon: "bicycle", Name: "Cycling", Keywords: []string{"gravel", "touring"}},
	}
	d.Sections.Certifications.Items = []Certification{
		{ID: NewID(), Title: "AWS Certified Developer", Issuer: "Amazon Web Services", Date: "2020"},
	}
	d.Sections.Awards.Items = []Award{
		{ID: NewID(), Title: "Engineering Excellence Award", Awarder: "Paybridge", Date: "2019"},
	}
	d.Sections.References.Items = []Reference{
		{ID: NewID(), Name: "Available upon request"},
	}

	return d
}
