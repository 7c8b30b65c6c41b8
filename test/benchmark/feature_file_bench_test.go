package benchmark

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
)

func denseFeatureFile(queries, docs, features int) []byte {
	var buf bytes.Buffer
	for q := 0; q < queries; q++ {
		for d := 0; d < docs; d++ {
			fmt.Fprintf(&buf, "%d qid:%d", d%3, q)
			for f := 1; f <= features; f++ {
				fmt.Fprintf(&buf, " %d:%g", f, float32(f*d%17)/7)
			}
			fmt.Fprintf(&buf, " #docid = d%d-%d\n", q, d)
		}
	}
	return buf.Bytes()
}

func BenchmarkParseLine(b *testing.B) {
	line := strings.TrimSpace(string(denseFeatureFile(1, 1, 46)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ltr.ParseLine(line); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadFeatureFile(b *testing.B) {
	for _, size := range []struct{ queries, docs int }{{10, 100}, {50, 1000}} {
		data := denseFeatureFile(size.queries, size.docs, 46)
		b.Run(fmt.Sprintf("vectors_%d", size.queries*size.docs), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := ltr.NewFileProvider(bytes.NewReader(data)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkWriteSparse(b *testing.B) {
	entries := make([]ltr.SchemaEntry, 46)
	for i := range entries {
		entries[i] = ltr.SchemaEntry{ID: i + 1, Name: fmt.Sprintf("f%d", i+1)}
	}
	schema := ltr.NewSchema(entries)
	features := make([]ltr.Feature, 46)
	for i := range features {
		if i%4 == 0 {
			features[i] = ltr.Feature{ID: i + 1, Value: float32(i) / 3}
		} else {
			features[i] = ltr.Feature{ID: i + 1}
		}
	}
	v := ltr.FeatureVector{QueryID: "1", DocID: "d", Features: features, Comment: "d"}
	var buf bytes.Buffer
	w := ltr.NewSparseWriter(&buf, schema)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if buf.Len() > 1<<20 {
			buf.Reset()
		}
		if err := w.Write(v); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		b.Fatal(err)
	}
}
