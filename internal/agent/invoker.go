package agent

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nin-ia/leadcard/pkg/tavily"
)

// ToolTavilySearch is the only tool the extraction agent declares.
const ToolTavilySearch = "tavily_search"

// Invoker executes a named external capability on behalf of a suspended run.
type Invoker interface {
	Invoke(ctx context.Context, name, arguments string) (string, error)
}

// SearchInvoker dispatches tool calls to the Tavily search client.
type SearchInvoker struct {
	search tavily.Client
}

// NewSearchInvoker creates an Invoker backed by the given search client.
func NewSearchInvoker(search tavily.Client) *SearchInvoker {
	return &SearchInvoker{search: search}
}

func (i *SearchInvoker) Invoke(ctx context.Context, name, arguments string) (string, error) {
	if name != ToolTavilySearch {
		return "", eris.Errorf("agent: unknown tool %q", name)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", eris.Wrapf(err, "agent: parse %s arguments", name)
	}
	if args.Query == "" {
		return "", eris.Errorf("agent: %s called with empty query", name)
	}

	zap.L().Info("agent: invoking search tool", zap.String("query", args.Query))

	result, err := i.search.SearchContext(ctx, args.Query)
	if err != nil {
		return "", eris.Wrapf(err, "agent: %s", name)
	}
	return result, nil
}
