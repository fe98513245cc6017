// Package content holds the dataset rendered by the portal: landmarks,
// culture blocks, the song and the tale. The catalog ships embedded in the
// binary and can be overridden by an external YAML file.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/tatarstan.yaml
var defaultCatalog []byte

// Landmark is a single landmark card. Coordinates are free-form text.
type Landmark struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	NameForeign string `yaml:"name_foreign"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	Coordinates string `yaml:"coordinates"`
	Image       string `yaml:"image"`
}

// CultureBlock is a picture with a titled paragraph and tags.
type CultureBlock struct {
	Title      string   `yaml:"title"`
	Body       string   `yaml:"body"`
	Tags       []string `yaml:"tags"`
	Image      string   `yaml:"image"`
	ImageAlt   string   `yaml:"image_alt"`
	ImageRight bool     `yaml:"image_right"`
}

// Stanza is a group of lines rendered together.
type Stanza []string

type Song struct {
	Title              string   `yaml:"title"`
	Subtitle           string   `yaml:"subtitle"`
	AudioURL           string   `yaml:"audio_url"`
	OriginalHeading    string   `yaml:"original_heading"`
	Original           []Stanza `yaml:"original"`
	TranslationHeading string   `yaml:"translation_heading"`
	Translation        []Stanza `yaml:"translation"`
}

type Tale struct {
	Title      string   `yaml:"title"`
	Subtitle   string   `yaml:"subtitle"`
	Paragraphs []string `yaml:"paragraphs"`
	Moral      string   `yaml:"moral"`
}

// Catalog is everything the page displays.
type Catalog struct {
	Region    string            `yaml:"region"`
	Tagline   string            `yaml:"tagline"`
	Footer    string            `yaml:"footer"`
	Tabs      map[string]string `yaml:"tabs"`
	Landmarks []Landmark        `yaml:"landmarks"`
	Culture   []CultureBlock    `yaml:"culture"`
	Song      Song              `yaml:"song"`
	Tale      Tale              `yaml:"tale"`
}

// Default decodes the embedded catalog.
func Default() (*Catalog, error) {
	c, err := Decode(bytes.NewReader(defaultCatalog))
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	return c, nil
}

// Load decodes and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Decode reads a YAML catalog from r and validates it.
func Decode(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants the page relies on.
func (c *Catalog) Validate() error {
	var errs []error
	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	seen := make(map[int]bool, len(c.Landmarks))
	for i, l := range c.Landmarks {
		switch {
		case l.ID <= 0:
			errs = append(errs, fmt.Errorf("landmark %d (%s): id must be positive", i, l.Name))
		case seen[l.ID]:
			errs = append(errs, fmt.Errorf("landmark %d (%s): duplicate id %d", i, l.Name, l.ID))
		}
		seen[l.ID] = true
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("landmark %d: name is required", i))
		}
	}
	if c.Song.Title == "" {
		errs = append(errs, errors.New("song: title is required"))
	}
	if c.Tale.Title == "" {
		errs = append(errs, errors.New("tale: title is required"))
	}
	return errors.Join(errs...)
}

// TabLabel returns the display label for s, falling back to its slug.
func (c *Catalog) TabLabel(s Section) string {
	if label, ok := c.Tabs[s.Slug()]; ok && label != "" {
		return label
	}
	return s.Slug()
}

// Dataset is the part of the catalog selected by a section. Exactly one of
// the payload fields is set, matching Section.
type Dataset struct {
	Section   Section
	Landmarks []Landmark
	Culture   []CultureBlock
	Song      *Song
	Tale      *Tale
}

// Dataset returns the view of c that s displays.
func (c *Catalog) Dataset(s Section) Dataset {
	d := Dataset{Section: s}
	switch s {
	case Culture:
		d.Culture = c.Culture
	case Music:
		d.Song = &c.Song
	case Tales:
		d.Tale = &c.Tale
	default:
		d.Section = Landmarks
		d.Landmarks = c.Landmarks
	}
	return d
}
