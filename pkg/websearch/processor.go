// Package websearch implements the retrieval side of the Search tool:
// Serper queries, source page fetching, readable-content extraction,
// chunking, and rerank-based context assembly.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/models"
)

// ProcessedSearch is the retrieval outcome for one search step: the
// context block handed to the summarizer and the sources to report on
// the session.
type ProcessedSearch struct {
	Context string
	Sources []models.Source
}

// Processor runs the search pipeline. With a Jina key configured it
// fetches and reranks page content; without one it falls back to the
// snippet-only context the summarizer was originally tuned on.
type Processor struct {
	serper    *SerperClient
	fetcher   *Fetcher
	converter *Converter
	jina      *JinaClient
	cfg       config.SearchConfig
	logger    *slog.Logger
}

// NewProcessor wires the pipeline from configuration.
func NewProcessor(cfg config.SearchConfig) *Processor {
	var jina *JinaClient
	if cfg.JinaAPIKey != "" {
		jina = NewJinaClient(cfg.JinaAPIKey, cfg.JinaURL, cfg.FetchTimeout)
	}
	return &Processor{
		serper:    NewSerperClient(cfg.SerperAPIKey, cfg.SerperURL, cfg.FetchTimeout),
		fetcher:   NewFetcher(cfg.FetchTimeout, cfg.MaxPageBytes),
		converter: NewConverter(),
		jina:      jina,
		cfg:       cfg,
		logger:    slog.With("component", "websearch"),
	}
}

// Process searches for the query and builds the summarizer context from
// the top organic results.
func (p *Processor) Process(ctx context.Context, query string) (*ProcessedSearch, error) {
	results, err := p.serper.Search(ctx, query, p.cfg.MaxSources)
	if err != nil {
		return nil, err
	}
	if len(results) > p.cfg.MaxSources {
		results = results[:p.cfg.MaxSources]
	}

	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Favicon: faviconURL(r.Link),
		})
	}

	if p.jina == nil {
		return &ProcessedSearch{Context: snippetContext(results), Sources: sources}, nil
	}

	var sb strings.Builder
	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "[Source %d] %s (%s)\n%s\n\n", i+1, r.Title, r.Link, p.sourceContent(ctx, query, r))
	}
	return &ProcessedSearch{Context: strings.TrimSpace(sb.String()), Sources: sources}, nil
}

// sourceContent fetches and distills one source, falling back to the
// search snippet when the page cannot be fetched or reduced.
func (p *Processor) sourceContent(ctx context.Context, query string, r Result) string {
	body, err := p.fetcher.Fetch(ctx, r.Link)
	if err != nil {
		p.logger.Debug("page fetch failed, using snippet", "link", r.Link, "error", err)
		return r.Snippet
	}

	extracted, err := p.converter.Convert(body, r.Link)
	if err != nil || strings.TrimSpace(extracted.Markdown) == "" {
		p.logger.Debug("content extraction failed, using snippet", "link", r.Link, "error", err)
		return r.Snippet
	}

	chunks := Chunk(extracted.Markdown, p.cfg.ChunkChars)
	top, err := p.jina.Rerank(ctx, query, chunks, p.cfg.TopChunks)
	if err != nil {
		p.logger.Debug("rerank failed, using leading chunks", "link", r.Link, "error", err)
		top = leadingIndices(len(chunks), p.cfg.TopChunks)
	}

	parts := make([]string, 0, len(top))
	for _, idx := range top {
		if idx >= 0 && idx < len(chunks) {
			parts = append(parts, chunks[idx])
		}
	}
	if len(parts) == 0 {
		return r.Snippet
	}
	return strings.Join(parts, "\n\n")
}

// leadingIndices returns 0..n-1 capped at top, the rerank-free chunk
// selection.
func leadingIndices(n, top int) []int {
	if top > 0 && top < n {
		n = top
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// faviconURL points at the conventional favicon location on the
// source's host.
func faviconURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}

// snippetContext renders search snippets in the numbered markdown shape
// the summarizer expects when page processing is unavailable.
func snippetContext(results []Result) string {
	entries := make([]string, 0, len(results))
	for i, r := range results {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d. [%s](%s)", i, r.Title, r.Link)
		if r.Date != "" {
			sb.WriteString("\nDate published: " + r.Date)
		}
		if r.Source != "" {
			sb.WriteString("\nSource: " + r.Source)
		}
		sb.WriteString("\n")
		if r.Snippet != "" {
			sb.WriteString("\n" + r.Snippet)
		}
		entries = append(entries, sb.String())
	}
	return "## Search Results\n" + strings.Join(entries, "\n\n")
}
