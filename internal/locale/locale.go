// Package locale renders system messages from an embedded YAML catalog.
package locale

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yml
var catalogFS embed.FS

// DefaultLocale is used when nothing better is known about the viewer.
const DefaultLocale = "en"

// Variant selects the phrasing of a system message for one viewer.
type Variant string

const (
	VariantTarget      Variant = "target"
	VariantCounterpart Variant = "counterpart"
	VariantOther       Variant = "other"
)

type entry struct {
	Target      string `yaml:"target"`
	Counterpart string `yaml:"counterpart"`
	Other       string `yaml:"other"`
}

func (e entry) pick(v Variant) string {
	switch v {
	case VariantTarget:
		return e.Target
	case VariantCounterpart:
		return e.Counterpart
	}
	return e.Other
}

// Catalog holds the texts for every shipped locale.
type Catalog struct {
	fallback string
	texts    map[string]map[string]entry
}

// Load parses every embedded catalog file. fallback must be one of them.
func Load(fallback string) (*Catalog, error) {
	files, err := catalogFS.ReadDir("catalog")
	if err != nil {
		return nil, fmt.Errorf("read locale catalog: %w", err)
	}

	c := &Catalog{fallback: fallback, texts: make(map[string]map[string]entry)}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		raw, err := catalogFS.ReadFile(path.Join("catalog", name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var entries map[string]entry
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		c.texts[strings.TrimSuffix(name, ".yml")] = entries
	}

	if _, ok := c.texts[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q is not in the catalog", fallback)
	}
	return c, nil
}

// MustLoad is Load for process start-up and tests.
func MustLoad(fallback string) *Catalog {
	c, err := Load(fallback)
	if err != nil {
		panic(err)
	}
	return c
}

// Locales lists the shipped locale codes.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.texts))
	for code := range c.texts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether code has a catalog.
func (c *Catalog) Supports(code string) bool {
	_, ok := c.texts[code]
	return ok
}

// Render returns the text of messageType for the viewer. otherName is the
// display name of the viewer's counterpart. Missing translations fall back
// to the fallback locale, then to the raw type.
func (c *Catalog) Render(locale, messageType string, variant Variant, otherName string) string {
	text := ""
	if entries, ok := c.texts[locale]; ok {
		text = entries[messageType].pick(variant)
	}
	if text == "" {
		text = c.texts[c.fallback][messageType].pick(variant)
	}
	if text == "" {
		return messageType
	}
	return strings.ReplaceAll(text, "{other}", otherName)
}

// Negotiate picks the first supported locale from an Accept-Language header,
// then the player's stored locale, then the fallback.
func (c *Catalog) Negotiate(acceptLanguage, playerLocale string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if c.Supports(base) {
			return base
		}
	}
	if code := strings.ToLower(strings.TrimSpace(playerLocale)); c.Supports(code) {
		return code
	}
	return c.fallback
}
