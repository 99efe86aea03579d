package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/textdex/internal/telemetry"
)

// QueryMetricsURI identifies the query_metrics resource.
const QueryMetricsURI = "textdex://query_metrics"

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	Summary           QueryMetricsSummary         `json:"summary"`
	KindCounts        map[string]int64            `json:"kind_counts"`
	IndexCounts       map[string]int64            `json:"index_counts"`
	TopTerms          []telemetry.TermCount       `json:"top_terms"`
	ZeroResultQueries []telemetry.ZeroResultQuery `json:"zero_result_queries"`
	Latency           map[string]int64            `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries    int64   `json:"total_queries"`
	FailedQueries   int64   `json:"failed_queries"`
	ZeroResultPct   float64 `json:"zero_result_pct"`
	ExactRepeatRate float64 `json:"exact_repeat_rate"`
	Since           string  `json:"since"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Query statistics collected since the server started",
			MIMEType:    "application/json",
		},
		s.handleQueryMetrics,
	)
}

func (s *Server) handleQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	snapshot := s.indices.QueryMetrics()
	if snapshot == nil {
		return nil, NewInvalidParamsError("query metrics not available: telemetry is disabled")
	}

	output := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:    snapshot.TotalQueries,
			FailedQueries:   snapshot.FailedQueries,
			ZeroResultPct:   snapshot.ZeroResultPercentage(),
			ExactRepeatRate: snapshot.ExactRepeatRate,
			Since:           snapshot.Since.UTC().Format("2006-01-02T15:04:05Z"),
		},
		KindCounts:        make(map[string]int64, len(snapshot.Kinds)),
		IndexCounts:       snapshot.Indices,
		TopTerms:          snapshot.TopTerms,
		ZeroResultQueries: snapshot.ZeroResults,
		Latency:           make(map[string]int64, len(snapshot.Latency)),
	}
	for k, n := range snapshot.Kinds {
		output.KindCounts[string(k)] = n
	}
	for b, n := range snapshot.Latency {
		output.Latency[string(b)] = n
	}

	body, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query metrics: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      QueryMetricsURI,
				MIMEType: "application/json",
				Text:     string(body),
			},
		},
	}, nil
}
