package models

// SiteConfig is the optional site settings file (YAML or TOML).
type SiteConfig struct {
	Categories   []Category `yaml:"categories" toml:"categories" json:"categories"`
	DefaultIcon  string     `yaml:"default_icon" toml:"default_icon" json:"default_icon"`
	GradientFrom string     `yaml:"gradient_from" toml:"gradient_from" json:"gradient_from"`
	GradientTo   string     `yaml:"gradient_to" toml:"gradient_to" json:"gradient_to"`

	// SlugCollision is "reject" or "suffix".
	SlugCollision string `yaml:"slug_collision" toml:"slug_collision" json:"slug_collision"`

	UnpublishClearsPublishedAt bool `yaml:"unpublish_clears_published_at" toml:"unpublish_clears_published_at" json:"unpublish_clears_published_at"`
}

type Category struct {
	Name    string `yaml:"name" toml:"name" json:"name"`
	LabelMn string `yaml:"label_mn" toml:"label_mn" json:"label_mn"`
	LabelEn string `yaml:"label_en" toml:"label_en" json:"label_en"`
}
