// Package benchmark measures tokenizer, in-memory index, indexing and
// search throughput over generated mixed CJK and Latin text.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"latin": "The quick brown fox jumps over the lazy dog",
	"mixed": `全文検索エンジンは文書を二文字ずつの組に分けて索引を作ります。
        English words such as Bigram and segment are indexed as whole words,
        while 漢字とひらがなの境界 are kept as boundary markers.`,
	"long": strings.Repeat(`情報検索システムは現代の検索基盤の中核をなす。
        Posting lists map each bigram to the sentences that contain it, and
        検索時には各述語の候補を積集合で絞り込む。`, 20),
}

func BenchmarkIndexSplit(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.IndexSplit(text)
			}
		})
	}
}

func BenchmarkIndexSplitParallel(b *testing.B) {
	text := sampleTexts["mixed"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tokenizer.IndexSplit(text)
		}
	})
}

func BenchmarkQuerySplit(b *testing.B) {
	queries := []string{"検索", "全文検索エンジン", "bigram", "Bigram検索"}
	for _, q := range queries {
		b.Run(q, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = tokenizer.QuerySplit(q)
			}
		})
	}
}

func BenchmarkIndexSplitVaryingSize(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		text := strings.Repeat("検索エンジン search ", n)
		b.Run(fmt.Sprintf("repeat_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.IndexSplit(text)
			}
		})
	}
}
