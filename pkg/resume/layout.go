package resume

import (
	"errors"
	"fmt"
	"slices"
)

// Layout columns.
const (
	ColumnMain    = "main"
	ColumnSidebar = "sidebar"
)

var (
	ErrSectionNotPlaced = errors.New("section is not placed in the layout")
	ErrInvalidPage      = errors.New("page index out of range")
	ErrInvalidColumn    = errors.New("column must be main or sidebar")
	ErrLastPage         = errors.New("cannot remove the only page")
)

// Position locates a section inside the layout.
type Position struct {
	Page   int
	Column string
	Index  int
}

func (l *Layout) column(page int, column string) (*[]string, error) {
	if page < 0 || page >= len(l.Pages) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	switch column {
	case ColumnMain:
		return &l.Pages[page].Main, nil
	case ColumnSidebar:
		return &l.Pages[page].Sidebar, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
}

// Find returns where id is placed.
func (l *Layout) Find(id string) (Position, bool) {
	for p, page := range l.Pages {
		if i := slices.Index(page.Main, id); i >= 0 {
			return Position{Page: p, Column: ColumnMain, Index: i}, true
		}
		if i := slices.Index(page.Sidebar, id); i >= 0 {
			return Position{Page: p, Column: ColumnSidebar, Index: i}, true
		}
	}
	return Position{}, false
}

// MoveSection moves id to position toIndex of the given page column, the
// way a drag ends in the builder: inside one column the item is moved to
// the target index, across columns it is removed and inserted at
// min(toIndex, len). A negative toIndex appends.
func (l *Layout) MoveSection(id string, toPage int, toColumn string, toIndex int) error {
	from, ok := l.Find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSectionNotPlaced, id)
	}
	dst, err := l.column(toPage, toColumn)
	if err != nil {
		return err
	}
	src, _ := l.column(from.Page, from.Column)

	if from.Page == toPage && from.Column == toColumn {
		if toIndex < 0 || toIndex >= len(*dst) {
			toIndex = len(*dst) - 1
		}
		if toIndex == from.Index {
			return nil
		}
		*dst = arrayMove(*dst, from.Index, toIndex)
		return nil
	}

	*src = slices.Delete(*src, from.Index, from.Index+1)
	if toIndex < 0 || toIndex > len(*dst) {
		toIndex = len(*dst)
	}
	*dst = slices.Insert(*dst, toIndex, id)
	return nil
}

// AddPage appends an empty page and returns its index.
func (l *Layout) AddPage() int {
	l.Pages = append(l.Pages, PageLayout{Main: []string{}, Sidebar: []string{}})
	return len(l.Pages) - 1
}

// RemovePage deletes the page at index. Its sections are appended to the
// previous page, or to the next one when the first page is removed.
func (l *Layout) RemovePage(index int) error {
	if index < 0 || index >= len(l.Pages) {
		return fmt.Errorf("%w: %d", ErrInvalidPage, index)
	}
	if len(l.Pages) == 1 {
		return ErrLastPage
	}

	removed := l.Pages[index]
	target := index - 1
	if index == 0 {
		target = 1
	}
	l.Pages[target].Main = append(l.Pages[target].Main, removed.Main...)
	l.Pages[target].Sidebar = append(l.Pages[target].Sidebar, removed.Sidebar...)
	l.Pages = slices.Delete(l.Pages, index, index+1)
	return nil
}

// PlaceMissing appends sections that exist in data but are absent from
// the layout to the main column of the first page.
func (d *ResumeData) PlaceMissing() {
	l := &d.Metadata.Layout
	if len(l.Pages) == 0 {
		l.AddPage()
	}
	for _, id := range SectionIDs(d) {
		if _, ok := l.Find(id); !ok {
			l.Pages[0].Main = append(l.Pages[0].Main, id)
		}
	}
}

// RemoveFromLayout drops id from every page.
func (l *Layout) RemoveFromLayout(id string) {
	for i := range l.Pages {
		l.Pages[i].Main = slices.DeleteFunc(l.Pages[i].Main, func(s string) bool { return s == id })
		l.Pages[i].Sidebar = slices.DeleteFunc(l.Pages[i].Sidebar, func(s string) bool { return s == id })
	}
}

func arrayMove(items []string, from, to int) []string {
	out := slices.Clone(items)
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item)
}
