package resume

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("template", func(fl validator.FieldLevel) bool {
		_, ok := LookupTemplate(fl.Field().String())
		return ok
	})
	return v
}

// ValidationError lists every problem found in a resume document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid resume data: " + strings.Join(e.Problems, "; ")
}

// Validate checks field constraints and the layout invariants: every id in
// the layout names a built-in or existing custom section and appears at
// most once across all pages and columns.
func Validate(data *ResumeData) error {
	if data == nil {
		return &ValidationError{Problems: []string{"resume data is required"}}
	}

	var problems []string

	if err := validate.Struct(data); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating resume data: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
		}
	}

	seenCustom := make(map[string]bool, len(data.CustomSections))
	for _, cs := range data.CustomSections {
		if slices.Contains(BuiltinSectionIDs, cs.ID) {
			problems = append(problems, fmt.Sprintf("custom section id %q collides with a built-in section", cs.ID))
		}
		if seenCustom[cs.ID] {
			problems = append(problems, fmt.Sprintf("custom section id %q is not unique", cs.ID))
		}
		seenCustom[cs.ID] = true
	}

	known := SectionIDs(data)
	placed := make(map[string]bool)
	for i, page := range data.Metadata.Layout.Pages {
		for _, id := range slices.Concat(page.Main, page.Sidebar) {
			if !slices.Contains(known, id) {
				problems = append(problems, fmt.Sprintf("page %d: unknown section %q", i, id))
				continue
			}
			if placed[id] {
				problems = append(problems, fmt.Sprintf("page %d: section %q placed more than once", i, id))
			}
			placed[id] = true
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
