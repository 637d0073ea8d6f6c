package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hack-pad/hackpadfs/mem"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
)

const sentence = "全文検索エンジンは文書を索引に登録する search engine"

func sentenceKeys() []string {
	terms := tokenizer.IndexSplit(sentence)
	keys := make([]string, len(terms))
	for i, t := range terms {
		keys[i] = t.String()
	}
	return keys
}

func BenchmarkMemoryIndexAdd(b *testing.B) {
	keys := sentenceKeys()
	mi := index.NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := mi.AddDocument(fmt.Sprintf("doc-%d", i), int64(i))
		mi.AddFeatures(id, 0, keys)
		mi.AddSentence(id, 0, sentence)
	}
}

func BenchmarkMemoryIndexSnapshot(b *testing.B) {
	keys := sentenceKeys()
	mi := index.NewMemoryIndex()
	for i := 0; i < 1000; i++ {
		id := mi.AddDocument(fmt.Sprintf("doc-%d", i), int64(i))
		mi.AddFeatures(id, 0, keys)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = mi.Snapshot()
	}
}

func BenchmarkIntersect(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		a := make(index.List, n)
		c := make(index.List, n/2)
		for i := range a {
			a[i] = index.Pair{DocID: int32(n - i), Pos: 0}
		}
		for i := range c {
			c[i] = index.Pair{DocID: int32(n - 2*i), Pos: 0}
		}
		b.Run(fmt.Sprintf("pairs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = index.Intersect(a, c)
			}
		})
	}
}

func newCorpus(n int) *corpus.MemoryCorpus {
	c := corpus.NewMemory(corpus.NewPlainText, "")
	for i := 0; i < n; i++ {
		body := fmt.Sprintf("%s 第%d版\n検索結果の%d番目の文書です。", sentence, i, i)
		c.Put(fmt.Sprintf("doc-%05d", i), "", []byte(body), int64(1000+i))
	}
	return c
}

func newDirectory(b *testing.B) *indexdir.Directory {
	b.Helper()
	fsys, err := mem.NewFS()
	if err != nil {
		b.Fatal(err)
	}
	dir, err := indexdir.Open(fsys, "")
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { dir.Close() })
	return dir
}

func BenchmarkIndexAll(b *testing.B) {
	c := newCorpus(200)
	cfg := config.IndexerConfig{MaxDocs: 100, MaxTerms: 50000, MaxSentences: 100000}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dir := newDirectory(b)
		b.StartTimer()
		ix := indexer.New(dir, c, cfg)
		if err := ix.IndexAll(context.Background()); err != nil {
			b.Fatal(err)
		}
		if err := ix.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}
