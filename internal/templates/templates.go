// Package templates provides embedded launcher config templates for launcher init.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"
)

//go:embed files/*
var templatesFS embed.FS

// Template represents a launcher config template with metadata.
type Template struct {
	Name        string
	Format      string
	Description string
	Content     []byte
}

// FileName is the config file name the template is written as.
func (t *Template) FileName() string {
	return "launcher." + t.Format
}

// Available templates with their descriptions.
var templateDescriptions = map[string]string{
	"minimal": "Update feed and backup list only",
	"full":    "Every setting with its default value",
}

// List returns all available template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir("files")
	if err != nil {
		return nil
	}

	names := lo.Uniq(lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		if e.IsDir() {
			return "", false
		}
		return strings.TrimSuffix(e.Name(), path.Ext(e.Name())), true
	}))
	sort.Strings(names)
	return names
}

// Formats returns the file formats a template is available in.
func Formats(name string) []string {
	entries, err := templatesFS.ReadDir("files")
	if err != nil {
		return nil
	}

	formats := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		ext := path.Ext(e.Name())
		return strings.TrimPrefix(ext, "."), strings.TrimSuffix(e.Name(), ext) == name
	})
	sort.Strings(formats)
	return formats
}

// Get returns a template by name and format (yaml, toml or json).
func Get(name, format string) (*Template, error) {
	format = strings.ToLower(format)
	if format == "yml" {
		format = "yaml"
	}

	filename := path.Join("files", name+"."+format)
	content, err := templatesFS.ReadFile(filename)
	if err != nil {
		if pathErr, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("template '%s' not found in %s format: %w", name, format, pathErr)
		}
		return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
	}

	return &Template{
		Name:        name,
		Format:      format,
		Description: templateDescriptions[name],
		Content:     content,
	}, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom template"
}
