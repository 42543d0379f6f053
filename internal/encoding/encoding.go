// Package encoding parses curated markdown catalogs into framework entries.
// The expected layout: level-2 headings name categories, list items below
// them describe one framework each as `[Name](url) - description` with
// optional inline-code tags.
package encoding

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxTags caps the tags kept per entry on ingest.
const MaxTags = 5

type Catalog struct {
	Title      string
	Categories []*Category
}

type Category struct {
	Name    string
	Entries []*Entry
}

// Entry is one framework parsed from a list item.
type Entry struct {
	Name        string
	Description string
	WebsiteURL  string
	RepoURL     string
	RepoPath    string
	Tags        []string
}

// options represents configuration options for parsing
type options struct {
	startSection string
	endSection   string
}

// Option is a function that configures options
type Option func(*options)

// WithStartSection sets the heading at which category parsing begins.
func WithStartSection(section string) Option {
	return func(o *options) {
		o.startSection = section
	}
}

// WithEndSection sets the heading at which category parsing stops.
func WithEndSection(section string) Option {
	return func(o *options) {
		o.endSection = section
	}
}

// UnmarshalCatalog parses a markdown catalog and groups entries by category.
func UnmarshalCatalog(in []byte, opts ...Option) (*Catalog, error) {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}

	root := goldmark.New().Parser().Parse(text.NewReader(in))

	var title string
	var category string
	var foundStartSection bool
	var reachedEndSection bool
	var order []string
	categoriesMap := make(map[string]*Category)

	if options.startSection == "" {
		foundStartSection = true
	}

	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if reachedEndSection {
			return ast.WalkStop, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			headingText, err := decodeText(n, in)
			if err != nil {
				return ast.WalkStop, fmt.Errorf("failed to decode heading text: %w", err)
			}
			if n.Level == 1 && title == "" {
				title = strings.TrimSpace(headingText)
			}
			if n.Level == 2 {
				if options.endSection != "" && foundStartSection && strings.Contains(headingText, options.endSection) {
					reachedEndSection = true
					return ast.WalkStop, nil
				}
				if options.startSection != "" && strings.Contains(headingText, options.startSection) {
					foundStartSection = true
					category = strings.TrimSpace(headingText)
				} else if foundStartSection {
					category = strings.TrimSpace(headingText)
				}
			}

		case *ast.List:
			if foundStartSection && !reachedEndSection && category != "" {
				if _, exists := categoriesMap[category]; !exists {
					categoriesMap[category] = &Category{Name: category}
					order = append(order, category)
				}
				for child := n.FirstChild(); child != nil; child = child.NextSibling() {
					listItem, ok := child.(*ast.ListItem)
					if !ok {
						continue
					}
					entry, err := unmarshalEntry(listItem, in)
					if err != nil {
						return ast.WalkStop, fmt.Errorf("failed to decode entry: %w", err)
					}
					if entry.Name != "" {
						categoriesMap[category].Entries = append(categoriesMap[category].Entries, entry)
					}
				}
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if options.startSection != "" && !foundStartSection {
		return nil, fmt.Errorf("%s section not found in the document", options.startSection)
	}

	catalog := &Catalog{Title: title}
	for _, name := range order {
		catalog.Categories = append(catalog.Categories, categoriesMap[name])
	}
	return catalog, nil
}

// unmarshalEntry extracts one framework from a list item. The first link
// carries the name and URL; text after " - " is the description; inline
// code spans become tags, capped at MaxTags.
func unmarshalEntry(listItem *ast.ListItem, src []byte) (*Entry, error) {
	entry := &Entry{}
	err := ast.Walk(listItem, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Link:
			if entry.Name != "" {
				return ast.WalkContinue, nil
			}
			name, err := decodeText(n, src)
			if err != nil {
				return ast.WalkStop, fmt.Errorf("failed to decode entry name: %w", err)
			}
			entry.Name = strings.TrimSpace(name)
			if err := entry.setURL(string(n.Destination)); err != nil {
				return ast.WalkStop, err
			}

		case *ast.Text:
			textValue, err := decodeText(n, src)
			if err != nil {
				return ast.WalkStop, fmt.Errorf("failed to decode entry description: %w", err)
			}
			if entry.Name != "" && entry.Description == "" && strings.Contains(textValue, " - ") {
				parts := strings.SplitN(textValue, " - ", 2)
				if len(parts) > 1 {
					entry.Description = strings.TrimSpace(parts[1])
				}
			}

		case *ast.CodeSpan:
			tag, err := decodeText(n, src)
			if err != nil {
				return ast.WalkStop, fmt.Errorf("failed to decode entry tag: %w", err)
			}
			tag = strings.TrimSpace(tag)
			if tag != "" && len(entry.Tags) < MaxTags {
				entry.Tags = append(entry.Tags, tag)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// setURL routes the entry's link: a github.com link supplies the repository
// path and URL, anything else is the project website.
func (e *Entry) setURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse entry URL: %w", err)
	}
	if u.Hostname() == "github.com" {
		path := strings.Trim(u.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) >= 2 {
			e.RepoPath = parts[0] + "/" + parts[1]
		}
		e.RepoURL = raw
		return nil
	}
	e.WebsiteURL = raw
	return nil
}

// decodeText extracts the text content of an AST node.
func decodeText(node ast.Node, src []byte) (string, error) {
	var text strings.Builder
	err := ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if textNode, ok := n.(*ast.Text); ok {
				text.Write(textNode.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}
