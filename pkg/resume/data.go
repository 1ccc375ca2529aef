// Package resume defines the resume document: the JSON structure holding a
// user's basics, sections, layout and styling metadata, together with the
// defaults, validation rules and layout operations that act on it.
package resume

// URL is a link with an optional display label.
type URL struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

type Picture struct {
	Hidden       bool    `json:"hidden"`
	URL          string  `json:"url"`
	Size         int     `json:"size" validate:"min=32,max=512"`
	Rotation     int     `json:"rotation" validate:"min=0,max=360"`
	AspectRatio  float64 `json:"aspectRatio" validate:"min=0.5,max=2.5"`
	BorderRadius int     `json:"borderRadius" validate:"min=0,max=100"`
	BorderColor  string  `json:"borderColor"`
	BorderWidth  int     `json:"borderWidth" validate:"min=0"`
	ShadowColor  string  `json:"shadowColor"`
	ShadowWidth  int     `json:"shadowWidth" validate:"min=0"`
}

type CustomField struct {
	ID   string `json:"id" validate:"required"`
	Icon string `json:"icon"`
	Text string `json:"text"`
}

type Basics struct {
	Name         string        `json:"name"`
	Headline     string        `json:"headline"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	Location     string        `json:"location"`
	Website      URL           `json:"website"`
	CustomFields []CustomField `json:"customFields" validate:"dive"`
}

// Summary holds the free-form introduction. Content is rich text HTML.
type Summary struct {
	Title   string `json:"title"`
	Columns int    `json:"columns" validate:"min=1,max=6"`
	Hidden  bool   `json:"hidden"`
	Content string `json:"content"`
}

// Section is a titled list of items rendered as a grid of Columns columns.
type Section[T any] struct {
	Title   string `json:"title"`
	Columns int    `json:"columns" validate:"min=1,max=6"`
	Hidden  bool   `json:"hidden"`
	Items   []T    `json:"items" validate:"dive"`
}

type Profile struct {
	ID       string `json:"id" validate:"required"`
	Hidden   bool   `json:"hidden"`
	Icon     string `json:"icon"`
	Network  string `json:"network"`
	Username string `json:"username"`
	Website  URL    `json:"website"`
}

type Experience struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	Location    string `json:"location"`
	Period      string `json:"period"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Education struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	School      string `json:"school"`
	Degree      string `json:"degree"`
	Area        string `json:"area"`
	Grade       string `json:"grade"`
	Location    string `json:"location"`
	Period      string `json:"period"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Project struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Name        string `json:"name"`
	Period      string `json:"period"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Skill struct {
	ID          string   `json:"id" validate:"required"`
	Hidden      bool     `json:"hidden"`
	Icon        string   `json:"icon"`
	Name        string   `json:"name"`
	Proficiency string   `json:"proficiency"`
	Level       int      `json:"level" validate:"min=0,max=5"`
	Keywords    []string `json:"keywords"`
}

type Language struct {
	ID       string `json:"id" validate:"required"`
	Hidden   bool   `json:"hidden"`
	Language string `json:"language"`
	Fluency  string `json:"fluency"`
	Level    int    `json:"level" validate:"min=0,max=5"`
}

type Interest struct {
	ID       string   `json:"id" validate:"required"`
	Hidden   bool     `json:"hidden"`
	Icon     string   `json:"icon"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

type Award struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Title       string `json:"title"`
	Awarder     string `json:"awarder"`
	Date        string `json:"date"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Certification struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Title       string `json:"title"`
	Issuer      string `json:"issuer"`
	Date        string `json:"date"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Publication struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Title       string `json:"title"`
	Publisher   string `json:"publisher"`
	Date        string `json:"date"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type Volunteer struct {
	ID           string `json:"id" validate:"required"`
	Hidden       bool   `json:"hidden"`
	Organization string `json:"organization"`
	Location     string `json:"location"`
	Period       string `json:"period"`
	Website      URL    `json:"website"`
	Description  string `json:"description"`
}

type Reference struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Sections groups the built-in sections. The JSON keys double as the
// section ids used in the page layout.
type Sections struct {
	Profiles       Section[Profile]       `json:"profiles"`
	Experience     Section[Experience]    `json:"experience"`
	Education      Section[Education]     `json:"education"`
	Projects       Section[Project]       `json:"projects"`
	Skills         Section[Skill]         `json:"skills"`
	Languages      Section[Language]      `json:"languages"`
	Interests      Section[Interest]      `json:"interests"`
	Awards         Section[Award]         `json:"awards"`
	Certifications Section[Certification] `json:"certifications"`
	Publications   Section[Publication]   `json:"publications"`
	Volunteer      Section[Volunteer]     `json:"volunteer"`
	References     Section[Reference]     `json:"references"`
}

type CustomItem struct {
	ID          string `json:"id" validate:"required"`
	Hidden      bool   `json:"hidden"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Website     URL    `json:"website"`
	Description string `json:"description"`
}

type CustomSection struct {
	ID      string       `json:"id" validate:"required"`
	Title   string       `json:"title"`
	Columns int          `json:"columns" validate:"min=1,max=6"`
	Hidden  bool         `json:"hidden"`
	Items   []CustomItem `json:"items" validate:"dive"`
}

// PageLayout lists the section ids placed in each column of one page.
type PageLayout struct {
	FullWidth bool     `json:"fullWidth"`
	Main      []string `json:"main"`
	Sidebar   []string `json:"sidebar"`
}

type Layout struct {
	SidebarWidth float64      `json:"sidebarWidth" validate:"min=10,max=50"`
	Pages        []PageLayout `json:"pages" validate:"min=1,dive"`
}

type CSS struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"`
}

type Page struct {
	Format  string `json:"format" validate:"oneof=a4 letter"`
	MarginX int    `json:"marginX" validate:"min=0,max=100"`
	MarginY int    `json:"marginY" validate:"min=0,max=100"`
	Locale  string `json:"locale"`
}

type Colors struct {
	Primary    string `json:"primary"`
	Text       string `json:"text"`
	Background string `json:"background"`
}

// LevelDesign controls how skill and language levels are drawn.
type LevelDesign struct {
	Icon string `json:"icon"`
	Type string `json:"type" validate:"oneof=hidden circle square rectangle rectangle-full progress-bar icon"`
}

type Design struct {
	Colors Colors      `json:"colors"`
	Level  LevelDesign `json:"level"`
}

type Font struct {
	FontFamily  string   `json:"fontFamily" validate:"required"`
	FontWeights []string `json:"fontWeights" validate:"min=1"`
	FontSize    float64  `json:"fontSize" validate:"min=6,max=24"`
	LineHeight  float64  `json:"lineHeight" validate:"min=0.5,max=4"`
}

type Typography struct {
	Body    Font `json:"body"`
	Heading Font `json:"heading"`
}

type Metadata struct {
	Template   string     `json:"template" validate:"template"`
	Layout     Layout     `json:"layout"`
	CSS        CSS        `json:"css"`
	Page       Page       `json:"page"`
	Design     Design     `json:"design"`
	Typography Typography `json:"typography"`
	Notes      string     `json:"notes"`
}

// ResumeData is the complete resume document.
type ResumeData struct {
	Picture        Picture         `json:"picture"`
	Basics         Basics          `json:"basics"`
	Summary        Summary         `json:"summary"`
	Sections       Sections        `json:"sections"`
	CustomSections []CustomSection `json:"customSections" validate:"dive"`
	Metadata       Metadata        `json:"metadata"`
}

// Section ids accepted in a page layout besides custom section ids.
const (
	SummaryID        = "summary"
	ProfilesID       = "profiles"
	ExperienceID     = "experience"
	EducationID      = "education"
	ProjectsID       = "projects"
	SkillsID         = "skills"
	LanguagesID      = "languages"
	InterestsID      = "interests"
	AwardsID         = "awards"
	CertificationsID = "certifications"
	PublicationsID   = "publications"
	VolunteerID      = "volunteer"
	ReferencesID     = "references"
)

// BuiltinSectionIDs lists the built-in section ids in their default order.
var BuiltinSectionIDs = []string{
	SummaryID,
	ProfilesID,
	ExperienceID,
	EducationID,
	ProjectsID,
	SkillsID,
	LanguagesID,
	InterestsID,
	AwardsID,
	CertificationsID,
	PublicationsID,
	VolunteerID,
	ReferencesID,
}

// SectionIDs returns every id that may be placed in the layout of data:
// the built-in ids followed by the ids of its custom sections.
func SectionIDs(data *ResumeData) []string {
	ids := make([]string, 0, len(BuiltinSectionIDs)+len(data.CustomSections))
	ids = append(ids, BuiltinSectionIDs...)
	for _, cs := range data.CustomSections {
		ids = append(ids, cs.ID)
	}
	return ids
}

// CustomSectionByID returns the custom section with the given id, or nil.
func (d *ResumeData) CustomSectionByID(id string) *CustomSection {
	for i := range d.CustomSections {
		if d.CustomSections[i].ID == id {
			return &d.CustomSections[i]
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *ResumeData) Clone() (*ResumeData, error) {
	raw, err := Marshal(d)
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}
