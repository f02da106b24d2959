package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

const (
	ChatTopK          = 4
	ChatMinScore      = 0.05
	DefaultChatLocale = "de"
	snippetLimit      = 320
	snippetEllipsis   = "…"
)

// DefaultChatTemplates returns the built-in answer templates.
func DefaultChatTemplates() map[string]domain.ChatTemplate {
	return map[string]domain.ChatTemplate{
		"de": {
			Intro: "Basierend auf der Wissensbasis habe ich folgende Hinweise gefunden:",
			NoResults: "Ich konnte keine passenden Informationen in der Dokumentation finden. " +
				"Bitte formuliere deine Frage anders oder schränke das Thema ein.",
			Question:      "Frage",
			Section:       "Abschnitt",
			SystemPrompt:  "Du bist ein hilfreicher Assistent. Beantworte Fragen ausschließlich anhand der bereitgestellten Kontexte.",
			ContextHeader: "Kontext aus der Wissensbasis:",
		},
		"en": {
			Intro: "Based on our knowledge base I found the following hints:",
			NoResults: "I could not find matching information in the documentation. " +
				"Please rephrase your question or narrow down the topic.",
			Question:      "Question",
			Section:       "Section",
			SystemPrompt:  "You are a helpful assistant. Answer questions only by relying on the supplied context snippets.",
			ContextHeader: "Context from the knowledge base:",
		},
	}
}

type ChatUseCase struct {
	locator       ports.IndexLocator
	loader        ports.IndexLoader
	templates     ports.TemplateSource
	responder     ports.ChatResponder
	defaultLocale string
	logger        *slog.Logger
}

func NewChatUseCase(
	locator ports.IndexLocator,
	loader ports.IndexLoader,
	templates ports.TemplateSource,
	responder ports.ChatResponder,
	defaultLocale string,
	logger *slog.Logger,
) *ChatUseCase {
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = DefaultChatLocale
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		locator:       locator,
		loader:        loader,
		templates:     templates,
		responder:     responder,
		defaultLocale: strings.ToLower(defaultLocale),
		logger:        logger,
	}
}

// Answer searches the domain's index, or the global index when the domain
// has none, and composes a cited answer.
func (uc *ChatUseCase) Answer(ctx context.Context, question, locale, domainName string) (*domain.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	tpl := uc.template(locale)

	results, err := uc.search(ctx, question, domainName)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.ChatResponse{Question: question, Answer: tpl.NoResults, Context: []domain.ContextItem{}}, nil
	}

	section := uc.sectionMarker(locale)
	items := make([]domain.ContextItem, 0, len(results))
	for _, r := range results {
		items = append(items, domain.ContextItem{
			Label:    buildLabel(r.Metadata, r.ChunkID, section),
			Snippet:  summarise(r.Text, snippetLimit),
			Score:    r.Score,
			Metadata: r.Metadata,
		})
	}

	answer := uc.respond(ctx, question, items, tpl)
	if answer == "" {
		answer = composeAnswer(question, items, tpl)
	}
	return &domain.ChatResponse{Question: question, Answer: answer, Context: items}, nil
}

func (uc *ChatUseCase) search(ctx context.Context, question, domainName string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(domainName) != "" {
		paths, err := uc.locator.DomainIndexPaths(ctx, domainName)
		if err != nil {
			return nil, fmt.Errorf("locate domain index: %w", err)
		}
		if len(paths) > 0 {
			for _, path := range paths {
				index, err := uc.loader.Open(path)
				if err != nil {
					uc.logger.Warn("domain_index_load_failed", "domain", domainName, "path", path, "error", err)
					continue
				}
				if results := index.Search(question, ChatTopK, ChatMinScore); len(results) > 0 {
					return results, nil
				}
			}
			return nil, nil
		}
	}

	globalPath := uc.locator.GlobalIndexPath()
	if globalPath == "" {
		return nil, nil
	}
	index, err := uc.loader.Open(globalPath)
	if err != nil {
		return nil, fmt.Errorf("load global index: %w", err)
	}
	return index.Search(question, ChatTopK, ChatMinScore), nil
}

func (uc *ChatUseCase) respond(ctx context.Context, question string, items []domain.ContextItem, tpl domain.ChatTemplate) string {
	if uc.responder == nil {
		return ""
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, tpl.ContextHeader)
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("[%d] %s\n%s", i+1, item.Label, item.Snippet))
	}
	messages := []domain.ChatMessage{
		{Role: "system", Content: tpl.SystemPrompt},
		{Role: "system", Content: strings.Join(lines, "\n\n")},
		{Role: "user", Content: question},
	}

	answer, err := uc.responder.Respond(ctx, messages)
	if err != nil {
		uc.logger.Warn("chat_responder_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// template resolves the exact locale, then its primary subtag, then the
// configured default.
func (uc *ChatUseCase) templateSet() map[string]domain.ChatTemplate {
	if uc.templates != nil {
		return uc.templates.Templates()
	}
	return DefaultChatTemplates()
}

func (uc *ChatUseCase) template(locale string) domain.ChatTemplate {
	templates := uc.templateSet()
	key := strings.ToLower(strings.TrimSpace(locale))
	if tpl, ok := templates[key]; ok {
		return tpl
	}
	if idx := strings.IndexAny(key, "-_"); idx > 0 {
		if tpl, ok := templates[key[:idx]]; ok {
			return tpl
		}
	}
	if tpl, ok := templates[uc.defaultLocale]; ok {
		return tpl
	}
	return DefaultChatTemplates()[DefaultChatLocale]
}

// sectionMarker depends on the requested locale only: English-prefixed
// locales cite "Section N", every other locale "Abschnitt N", whatever
// template the locale fallback picked for the answer text.
func (uc *ChatUseCase) sectionMarker(locale string) string {
	key := "de"
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en") {
		key = "en"
	}
	if tpl, ok := uc.templateSet()[key]; ok && tpl.Section != "" {
		return tpl.Section
	}
	return DefaultChatTemplates()[key].Section
}

func composeAnswer(question string, items []domain.ContextItem, tpl domain.ChatTemplate) string {
	lines := make([]string, 0, len(items)+3)
	lines = append(lines, tpl.Intro)
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, item.Label, item.Snippet))
	}
	lines = append(lines, "", fmt.Sprintf("%s: %s", tpl.Question, question))
	return strings.Join(lines, "\n")
}

// buildLabel prefers the title (with a section marker when the chunk index
// is known), then the source, then the chunk id.
func buildLabel(metadata map[string]any, chunkID, section string) string {
	if title := metadataString(metadata, "title"); title != "" {
		if chunkIndex := metadataString(metadata, "chunk_index"); chunkIndex != "" {
			return fmt.Sprintf("%s (%s %s)", title, section, chunkIndex)
		}
		return title
	}
	if source := metadataString(metadata, "source"); source != "" {
		return source
	}
	return chunkID
}

func metadataString(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func summarise(text string, limit int) string {
	condensed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(condensed) <= limit {
		return condensed
	}
	runes := []rune(condensed)
	return string(runes[:limit-1]) + snippetEllipsis
}
