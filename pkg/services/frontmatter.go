package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Languages the site publishes in. Mongolian is the default.
var Languages = []string{"mn", "en"}

func IsLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// ConstructFileContent renders front matter fm in format (yaml, toml or json)
// followed by body.
func ConstructFileContent(fm map[string]interface{}, body string, format string) ([]byte, error) {
	if fm == nil {
		fm = map[string]interface{}{}
	}

	var buf bytes.Buffer
	switch format {
	case "yaml":
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(fm); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
	case "toml":
		buf.WriteString("+++\n")
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(fm); err != nil {
			return nil, err
		}
		buf.WriteString("+++\n")
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fm); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportArticle renders one language of a as a Hugo content file.
func ExportArticle(a *models.Article, lang, format string) ([]byte, error) {
	if !IsLanguage(lang) {
		return nil, validationf("unsupported language %q", lang)
	}

	date := a.CreatedAt
	if a.PublishedAt != nil {
		date = *a.PublishedAt
	}
	fm := map[string]interface{}{
		"title":       a.Title(lang),
		"description": a.Excerpt(lang),
		"slug":        a.Slug,
		"date":        date.UTC().Format(time.RFC3339),
		"lastmod":     a.UpdatedAt.UTC().Format(time.RFC3339),
		"draft":       !a.Published,
		"categories":  []string{a.Category},
		"params": map[string]interface{}{
			"icon":          a.IconType,
			"gradient_from": a.GradientFrom,
			"gradient_to":   a.GradientTo,
		},
	}
	if a.FeaturedImage != nil {
		fm["featured_image"] = *a.FeaturedImage
	}
	if len(a.Images) > 0 {
		gallery := make([]string, 0, len(a.Images))
		for _, img := range a.Images {
			gallery = append(gallery, img.URL)
		}
		fm["images"] = gallery
	}

	return ConstructFileContent(fm, a.Content(lang), format)
}

// ExportPath is where a language file of a lives inside a Hugo content dir.
func ExportPath(a *models.Article, lang, format string) string {
	ext := ".md"
	if format == "json" {
		ext = ".json"
	}
	return path.Join(a.Category, a.Slug, "index."+lang+ext)
}
