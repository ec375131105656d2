package enrich

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/scrape"
)

// Scraper fetches the text content of a URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (scrape.Page, error)
}

// Extractor turns a rendered prompt into a structured field map. It returns
// the raw candidate fields and the model identifier that produced them.
type Extractor interface {
	Extract(ctx context.Context, prompt string, schema ExtractionSchema) (map[string]any, string, error)
}

// Enricher runs the scrape -> prompt -> extract -> validate pipeline.
type Enricher struct {
	scraper   Scraper
	extractor Extractor
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnricher builds an Enricher.
func NewEnricher(scraper Scraper, extractor Extractor, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		scraper:   scraper,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// EnrichURL enriches a single URL. vars may carry extra template variables;
// website_content and schema_fields are always set by the pipeline.
func (e *Enricher) EnrichURL(
	ctx context.Context,
	url string,
	schema ExtractionSchema,
	tpl PromptTemplate,
	vars map[string]string,
) (Result, error) {
	page, err := e.scraper.Scrape(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("scrape %s: %w", url, err)
	}
	e.logger.Info("scraped page",
		zap.String("url", url),
		zap.Int("chars", len(page.Markdown)),
	)

	rendered := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		rendered[k] = v
	}
	rendered["website_content"] = page.Markdown
	rendered["schema_fields"] = schema.FieldSummary()

	prompt := tpl.Render(rendered)

	candidate, model, err := e.extractor.Extract(ctx, prompt, schema)
	if err != nil {
		return Result{}, fmt.Errorf("extract from %s: %w", url, err)
	}

	fields, err := schema.Normalize(candidate)
	if err != nil {
		return Result{}, err
	}
	e.logger.Info("extraction complete",
		zap.String("url", url),
		zap.String("schema", schema.Name),
		zap.Int("fields", len(fields)),
	)

	return Result{
		CompanyName:     vars["company_name"],
		SourceURL:       url,
		SchemaName:      schema.Name,
		PromptName:      tpl.Name,
		ExtractedFields: fields,
		GeneratedAt:     e.now(),
		Model:           model,
	}, nil
}
