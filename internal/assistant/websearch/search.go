package websearch

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/plotpilot/server/internal/assistant/model"
	logx "github.com/plotpilot/server/pkg/logger"
)

// Source is one citation backing a search digest.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Result is a text digest plus the sources that ground it.
type Result struct {
	Digest  string   `json:"digest"`
	Sources []Source `json:"sources,omitempty"`
}

// Service runs web searches as an independent model call carrying only the
// search-grounding tool, decoupled from the main function-calling session so
// tool categories never mix within one model turn.
type Service struct {
	client   *genai.Client
	model    string
	maxChars int
}

func New(client *genai.Client, cfg model.SearchModelConfig) *Service {
	return &Service{client: client, model: cfg.Model, maxChars: cfg.MaxChars}
}

// Search asks the search-grounded model for a digest of the query.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("web search is not configured")
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(query),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		})
	if err != nil {
		logx.Warn().Err(err).Msg("web search call failed")
		return nil, fmt.Errorf("web search: %w", err)
	}

	digest := strings.TrimSpace(resp.Text())
	if digest == "" {
		return nil, fmt.Errorf("web search returned no text")
	}
	if s.maxChars > 0 && len(digest) > s.maxChars {
		digest = digest[:s.maxChars]
	}

	return &Result{Digest: digest, Sources: extractSources(resp)}, nil
}

// extractSources pulls grounding citations out of the response metadata.
func extractSources(resp *genai.GenerateContentResponse) []Source {
	var sources []Source
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			sources = append(sources, Source{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}
	return sources
}
