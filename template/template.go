// Package template loads prompt templates with optional YAML frontmatter
// and renders them with {{name}} parameter substitution.
package template

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Param declares one template parameter in frontmatter.
type Param struct {
	Default     *string `yaml:"default"`
	Description string  `yaml:"description"`
	Required    bool    `yaml:"required"`
}

// Frontmatter is the YAML header of a template file.
type Frontmatter struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	System      string           `yaml:"system"`
	Params      map[string]Param `yaml:"params"`
}

// Template is a parsed prompt template.
type Template struct {
	Meta Frontmatter
	Body string
}

// MissingParamsError reports required parameters with no value.
type MissingParamsError struct {
	Names []string
}

func (e *MissingParamsError) Error() string {
	return "missing required template parameters: " + strings.Join(e.Names, ", ")
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- template path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Parse(string(data))
}

// Parse parses template text. Frontmatter is optional; without it the whole
// input is the body.
func Parse(text string) (*Template, error) {
	tmpl := &Template{Body: text}

	trimmed := strings.TrimLeft(text, "\r\n")
	if !strings.HasPrefix(trimmed, frontmatterDelimiter+"\n") && trimmed != frontmatterDelimiter {
		return tmpl, nil
	}

	rest := strings.TrimPrefix(trimmed, frontmatterDelimiter+"\n")
	idx := strings.Index(rest, "\n"+frontmatterDelimiter)
	if idx < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	header := rest[:idx]
	body := rest[idx+len("\n"+frontmatterDelimiter):]
	body = strings.TrimPrefix(body, "\n")

	var meta Frontmatter
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	tmpl.Meta = meta
	tmpl.Body = body
	return tmpl, nil
}

// Render substitutes parameter values into the template body. User-supplied
// values win over frontmatter defaults; required parameters with neither are
// an error. Placeholders the template never declared are left intact.
func (t *Template) Render(values map[string]string) (string, error) {
	merged := make(map[string]string, len(values))
	for k, v := range values {
		merged[k] = v
	}

	defaults := make(map[string]string)
	for name, param := range t.Meta.Params {
		if param.Default != nil {
			defaults[name] = *param.Default
		}
	}
	if err := mergo.Merge(&merged, defaults); err != nil {
		return "", fmt.Errorf("failed to merge parameter defaults: %w", err)
	}

	var missing []string
	for name, param := range t.Meta.Params {
		if _, ok := merged[name]; !ok && param.Required {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingParamsError{Names: missing}
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(t.Body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := merged[name]; ok {
			return value
		}
		return match
	})
	return rendered, nil
}
