// Package syncproto holds the wire types shared by the sync server and its
// device clients.
package syncproto

import (
	"sort"
	"strings"

	"github.com/rohanthewiz/serr"
)

// ColorCategory tags a note for sorting and display.
type ColorCategory string

const (
	ColorNeutral ColorCategory = "Neutral"
	ColorRed     ColorCategory = "Red"
	ColorBlue    ColorCategory = "Blue"
	ColorGreen   ColorCategory = "Green"
	ColorYellow  ColorCategory = "Yellow"
	ColorViolet  ColorCategory = "Violet"
)

// colorRank orders categories for listing.
var colorRank = map[ColorCategory]int{
	ColorNeutral: 0,
	ColorRed:     1,
	ColorBlue:    2,
	ColorGreen:   3,
	ColorYellow:  4,
	ColorViolet:  5,
}

// Valid reports whether c is a known category. The empty value counts as
// Neutral.
func (c ColorCategory) Valid() bool {
	if c == "" {
		return true
	}
	_, ok := colorRank[c]
	return ok
}

// Normalize maps the empty value to Neutral.
func (c ColorCategory) Normalize() ColorCategory {
	if c == "" {
		return ColorNeutral
	}
	return c
}

// ParseColorCategory is a case-insensitive lookup used by the CLI.
func ParseColorCategory(s string) (ColorCategory, error) {
	if s == "" {
		return ColorNeutral, nil
	}
	for c := range colorRank {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", serr.New("unknown color category: " + s)
}

// Note is the unit of synchronization.
type Note struct {
	ID             string        `json:"id" msgpack:"id"`
	Title          string        `json:"title" msgpack:"title"`
	Content        string        `json:"content" msgpack:"content"`
	ColorCategory  ColorCategory `json:"colorCategory" msgpack:"color"`
	IsImportant    bool          `json:"isImportant" msgpack:"important"`
	ChangedDate    Timestamp     `json:"changedDate" msgpack:"changed"`
	AttachmentFile *string       `json:"attachmentFile" msgpack:"attachment"`
}

// RecordKey identifies the note in a keyed store.
func (n Note) RecordKey() string {
	return n.ID
}

// HasAttachment reports whether an attachment reference is set. The file
// itself may not be present locally.
func (n Note) HasAttachment() bool {
	return n.AttachmentFile != nil && *n.AttachmentFile != ""
}

// IsEmpty reports whether the note carries nothing worth keeping.
func (n Note) IsEmpty() bool {
	return strings.TrimSpace(n.Title) == "" &&
		strings.TrimSpace(n.Content) == "" &&
		!n.HasAttachment()
}

// Validate checks the shape of a note received at an API boundary.
func (n Note) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return serr.New("note id is required")
	}
	if !n.ColorCategory.Valid() {
		return serr.New("invalid colorCategory: " + string(n.ColorCategory))
	}
	if n.ChangedDate.IsZero() {
		return serr.New("note changedDate is required")
	}
	return nil
}

// NotePatch is a partial note. Nil fields are left untouched when applied.
type NotePatch struct {
	Title          *string
	Content        *string
	ColorCategory  *ColorCategory
	IsImportant    *bool
	ChangedDate    *Timestamp
	AttachmentFile *string
}

// PatchFrom builds a patch carrying every field of n that is set. A nil
// attachment is treated as unset rather than as a removal.
func PatchFrom(n Note) NotePatch {
	title, content := n.Title, n.Content
	color := n.ColorCategory.Normalize()
	important := n.IsImportant
	changed := n.ChangedDate
	p := NotePatch{
		Title:         &title,
		Content:       &content,
		ColorCategory: &color,
		IsImportant:   &important,
		ChangedDate:   &changed,
	}
	if n.AttachmentFile != nil {
		att := *n.AttachmentFile
		p.AttachmentFile = &att
	}
	return p
}

// Apply merges the non-nil fields of p onto n.
func (n *Note) Apply(p NotePatch) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.ColorCategory != nil {
		n.ColorCategory = p.ColorCategory.Normalize()
	}
	if p.IsImportant != nil {
		n.IsImportant = *p.IsImportant
	}
	if p.ChangedDate != nil {
		n.ChangedDate = *p.ChangedDate
	}
	if p.AttachmentFile != nil {
		att := *p.AttachmentFile
		n.AttachmentFile = &att
	}
}

// SortNotes orders notes for display: important first, then by color
// category, then most recently changed.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.IsImportant != b.IsImportant {
			return a.IsImportant
		}
		ra, rb := colorRank[a.ColorCategory.Normalize()], colorRank[b.ColorCategory.Normalize()]
		if ra != rb {
			return ra < rb
		}
		return a.ChangedDate > b.ChangedDate
	})
}

// StringPtr is a small helper for optional fields.
func StringPtr(s string) *string {
	return &s
}
