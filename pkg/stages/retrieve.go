package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/cache"
	"github.com/DongHyun925/MediGraph/pkg/search"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
	"github.com/DongHyun925/MediGraph/pkg/workflow/observability"
	"go.opentelemetry.io/otel/attribute"
)

// RetrieveConfig configures evidence retrieval.
type RetrieveConfig struct {
	// MaxResults is passed to the searcher; zero uses the searcher default.
	MaxResults int
	// ExcludeDomains overrides the default excluded domains when non-nil.
	ExcludeDomains []string
}

// EvidenceQuery builds the search query for a symptom list.
func EvidenceQuery(symptoms []string) string {
	return fmt.Sprintf("medical diagnosis and treatment for symptoms: %s (official medical guidelines or research paper)",
		strings.Join(symptoms, ", "))
}

// NewRetrieveEvidence returns the stage that searches for evidence about
// the current symptoms. Results are memoized in c by query; c may be nil.
func NewRetrieveEvidence(searcher search.Searcher, c *cache.Cache[[]string], cfg RetrieveConfig) Stage {
	return Stage{
		ID: RetrieveEvidenceID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			if len(s.Symptoms) == 0 {
				ctx.Logger().Debug("no symptoms to search for")
				return evidenceUpdate(nil), nil
			}

			query := EvidenceQuery(s.Symptoms)
			key := cache.Key(query)
			if c != nil {
				if evidence, ok := c.Get(key); ok {
					observability.AddSpanEvent(ctx, "evidence.cache_hit", attribute.String("cache.key", key))
					return evidenceUpdate(evidence), nil
				}
			}

			results, err := searcher.Search(ctx, search.Request{
				Query:          query,
				MaxResults:     cfg.MaxResults,
				ExcludeDomains: cfg.ExcludeDomains,
			})
			if err != nil {
				return session.Update{}, fmt.Errorf("search evidence: %w", err)
			}

			evidence := search.Contents(results)
			ctx.Logger().Debug("evidence retrieved", "results", len(results), "evidence", len(evidence))
			// Empty results are not memoized so the next cycle searches again.
			if c != nil && len(evidence) > 0 {
				c.Set(key, evidence)
			}
			return evidenceUpdate(evidence), nil
		},
		Fallback: func(session.State, error) session.Update {
			return evidenceUpdate(nil)
		},
	}
}

func evidenceUpdate(evidence []string) session.Update {
	out := make([]string, len(evidence))
	copy(out, evidence)
	return session.Update{Evidence: session.Set(out)}
}
