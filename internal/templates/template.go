// Package templates scaffolds new easyblocks projects: a config file, a
// project definitions file and a starter document.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Template is a named set of files.
type Template struct {
	Name        string
	Description string
	Files       []File
}

// File is rendered with text/template against Data.
type File struct {
	Path    string
	Content string
}

// Data is what templates are rendered with.
type Data struct {
	ProjectID string
	Port      int
	Database  string
	DSN       string
	Locale    string
}

// Validate checks the template can be scaffolded.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(t.Files) == 0 {
		return fmt.Errorf("template %s has no files", t.Name)
	}
	for _, f := range t.Files {
		if f.Path == "" || filepath.IsAbs(f.Path) || strings.HasPrefix(filepath.Clean(f.Path), "..") {
			return fmt.Errorf("template %s: invalid file path %q", t.Name, f.Path)
		}
	}
	return nil
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// Render renders every file without touching the disk.
func (t *Template) Render(data Data) (map[string][]byte, error) {
	out := make(map[string][]byte, len(t.Files))
	for _, f := range t.Files {
		tmpl, err := template.New(f.Path).Funcs(funcs).Option("missingkey=error").Parse(f.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", f.Path, err)
		}
		out[f.Path] = buf.Bytes()
	}
	return out, nil
}

// Write renders the template into dir and returns the written paths.
// Existing files are left alone and reported as an error unless force is
// set.
func (t *Template) Write(dir string, data Data, force bool) ([]string, error) {
	files, err := t.Render(data)
	if err != nil {
		return nil, err
	}

	if !force {
		for _, f := range t.Files {
			if _, err := os.Stat(filepath.Join(dir, f.Path)); err == nil {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", f.Path)
			}
		}
	}

	written := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		path := filepath.Join(dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, files[f.Path], 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
