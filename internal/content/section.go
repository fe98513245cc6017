package content

import (
	"errors"
	"fmt"
)

// Section is one of the mutually exclusive views of the page.
type Section int

const (
	Landmarks Section = iota
	Culture
	Music
	Tales
)

// ErrUnknownSection is returned when a slug does not name a Section.
var ErrUnknownSection = errors.New("unknown section")

// Sections lists every section in display order.
var Sections = []Section{Landmarks, Culture, Music, Tales}

var slugs = map[Section]string{
	Landmarks: "landmarks",
	Culture:   "culture",
	Music:     "music",
	Tales:     "tales",
}

// Slug is the wire name of the section.
func (s Section) Slug() string {
	if slug, ok := slugs[s]; ok {
		return slug
	}
	return fmt.Sprintf("section(%d)", int(s))
}

func (s Section) String() string { return s.Slug() }

// Valid reports whether s is a member of the enumerated set.
func (s Section) Valid() bool {
	_, ok := slugs[s]
	return ok
}

// ParseSection maps a slug back to its Section.
func ParseSection(slug string) (Section, error) {
	for s, v := range slugs {
		if v == slug {
			return s, nil
		}
	}
	return Landmarks, fmt.Errorf("%w: %q", ErrUnknownSection, slug)
}

// MarshalText implements encoding.TextMarshaler.
func (s Section) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSection, int(s))
	}
	return []byte(s.Slug()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Section) UnmarshalText(b []byte) error {
	v, err := ParseSection(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
