package benchmark

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
)

func BenchmarkParsePredicates(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"single", "検索"},
		{"pair", "全文検索 エンジン"},
		{"negated", "検索 -エンジン"},
		{"quoted", `"search engine" 文書`},
		{"scoped", "title:検索 label:news"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := query.ParsePredicates(q.query, 10, query.Options{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func newExecutor(b *testing.B) *executor.Executor {
	b.Helper()
	dir := newDirectory(b)
	ix := indexer.New(dir, newCorpus(2000), config.IndexerConfig{MaxDocs: 500, MaxTerms: 50000, MaxSentences: 100000})
	if err := ix.IndexAll(context.Background()); err != nil {
		b.Fatal(err)
	}
	if err := ix.Finish(); err != nil {
		b.Fatal(err)
	}
	return executor.New(dir, config.SearchConfig{
		Timeout:       10 * time.Second,
		PageSize:      10,
		MaxPageSize:   100,
		MaxPredicates: 10,
		Snippet:       config.SnippetConfig{MaxSentences: 3, MaxChars: 100, MaxMargin: 20},
	}, nil, nil)
}

func BenchmarkSearchPage(b *testing.B) {
	e := newExecutor(b)
	for _, q := range []string{"検索", "全文検索 文書", "search -engine"} {
		b.Run(q, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Execute(context.Background(), executor.Request{Query: q, Limit: 10}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearchPageParallel(b *testing.B) {
	e := newExecutor(b)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Execute(context.Background(), executor.Request{Query: "検索エンジン", Limit: 10}); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
