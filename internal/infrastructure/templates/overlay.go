package templates

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

// Overlay is the built-in template set with locales from a YAML file merged
// over it field by field.
type Overlay struct {
	templates map[string]domain.ChatTemplate
}

func NewOverlay(base map[string]domain.ChatTemplate) *Overlay {
	templates := make(map[string]domain.ChatTemplate, len(base))
	for locale, tpl := range base {
		templates[normalizeLocale(locale)] = tpl
	}
	return &Overlay{templates: templates}
}

// LoadFile merges path into base. An empty path or a missing file yields base
// unchanged.
func LoadFile(path string, base map[string]domain.ChatTemplate) (*Overlay, error) {
	overlay := NewOverlay(base)
	if strings.TrimSpace(path) == "" {
		return overlay, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return overlay, nil
		}
		return nil, fmt.Errorf("read chat templates: %w", err)
	}
	if err := overlay.Merge(data); err != nil {
		return nil, fmt.Errorf("chat templates %s: %w", path, err)
	}
	return overlay, nil
}

func (o *Overlay) Merge(data []byte) error {
	var parsed map[string]domain.ChatTemplate
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	for locale, tpl := range parsed {
		key := normalizeLocale(locale)
		if key == "" {
			continue
		}
		o.templates[key] = mergeTemplate(o.templates[key], tpl)
	}
	return nil
}

func (o *Overlay) Templates() map[string]domain.ChatTemplate {
	out := make(map[string]domain.ChatTemplate, len(o.templates))
	for locale, tpl := range o.templates {
		out[locale] = tpl
	}
	return out
}

func mergeTemplate(base, override domain.ChatTemplate) domain.ChatTemplate {
	pick := func(current, next string) string {
		if strings.TrimSpace(next) != "" {
			return next
		}
		return current
	}
	return domain.ChatTemplate{
		Intro:         pick(base.Intro, override.Intro),
		NoResults:     pick(base.NoResults, override.NoResults),
		Question:      pick(base.Question, override.Question),
		Section:       pick(base.Section, override.Section),
		SystemPrompt:  pick(base.SystemPrompt, override.SystemPrompt),
		ContextHeader: pick(base.ContextHeader, override.ContextHeader),
	}
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.TrimSpace(locale))
}
