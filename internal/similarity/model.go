// Package similarity implements the classical ranking functions used as
// relevance signals: raw term frequency, TF-IDF, BM25, PL2 and query
// likelihood with Dirichlet smoothing. The formulas follow the Lucene 8
// similarities, including the lossy one-byte encoding of document lengths.
package similarity

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

type Kind int

const (
	KindTF Kind = iota
	KindTFIDF
	KindBM25
	KindPL2
	KindQL
)

var kindNames = map[Kind]string{
	KindTF:    "tf",
	KindTFIDF: "tfidf",
	KindBM25:  "bm25",
	KindPL2:   "pl2",
	KindQL:    "ql",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a model name such as "bm25" (case-insensitive).
func ParseKind(name string) (Kind, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == lower {
			return k, nil
		}
	}
	return 0, apperrors.Configurationf("unknown similarity model %q", name)
}

// Model is one of TF, TFIDF, BM25, PL2 or QL. The set is closed: only the
// types in this package implement it.
type Model interface {
	Kind() Kind
	String() string
	isModel()
}

// TF scores a term by its raw frequency in the document.
type TF struct{}

// TFIDF is the classic vector-space similarity.
type TFIDF struct{}

// BM25 is the Robertson/Sparck-Jones probabilistic model.
type BM25 struct {
	K1 float64
	B  float64
}

// PL2 is divergence from randomness with basic model In, after-effect L and
// normalization H2.
type PL2 struct {
	C float64
}

// QL is query likelihood with Dirichlet smoothing.
type QL struct {
	Mu float64
}

func (TF) Kind() Kind    { return KindTF }
func (TFIDF) Kind() Kind { return KindTFIDF }
func (BM25) Kind() Kind  { return KindBM25 }
func (PL2) Kind() Kind   { return KindPL2 }
func (QL) Kind() Kind    { return KindQL }

func (TF) String() string      { return "tf" }
func (TFIDF) String() string   { return "tfidf" }
func (m BM25) String() string  { return fmt.Sprintf("bm25(k1=%g,b=%g)", m.K1, m.B) }
func (m PL2) String() string   { return fmt.Sprintf("pl2(c=%g)", m.C) }
func (m QL) String() string    { return fmt.Sprintf("ql(mu=%g)", m.Mu) }

func (TF) isModel()    {}
func (TFIDF) isModel() {}
func (BM25) isModel()  {}
func (PL2) isModel()   {}
func (QL) isModel()    {}

// Params carries the free parameters of every model.
type Params struct {
	K1 float64
	B  float64
	C  float64
	Mu float64
}

// DefaultParams are the reference values k1=0.9, b=0.4, c=0.1, mu=1000.
var DefaultParams = Params{K1: 0.9, B: 0.4, C: 0.1, Mu: 1000}

// New builds the model of the given kind from p.
func New(kind Kind, p Params) (Model, error) {
	switch kind {
	case KindTF:
		return TF{}, nil
	case KindTFIDF:
		return TFIDF{}, nil
	case KindBM25:
		if p.K1 < 0 || p.B < 0 || p.B > 1 {
			return nil, apperrors.Configurationf("invalid bm25 parameters k1=%v b=%v", p.K1, p.B)
		}
		return BM25{K1: p.K1, B: p.B}, nil
	case KindPL2:
		if p.C <= 0 {
			return nil, apperrors.Configurationf("invalid pl2 parameter c=%v", p.C)
		}
		return PL2{C: p.C}, nil
	case KindQL:
		if p.Mu <= 0 {
			return nil, apperrors.Configurationf("invalid ql parameter mu=%v", p.Mu)
		}
		return QL{Mu: p.Mu}, nil
	}
	return nil, apperrors.Configurationf("unknown similarity kind %d", int(kind))
}

// CollectionStats are the field-level statistics shared by all terms.
type CollectionStats struct {
	DocCount       int64
	AvgFieldLength float64
}

func (c CollectionStats) sumTotalTermFreq() float64 {
	return math.Round(c.AvgFieldLength * float64(c.DocCount))
}

// TermStats are the collection statistics of one term.
type TermStats struct {
	DocFreq       int64
	TotalTermFreq int64
}

// TermScore scores freq occurrences of a term in a document of docLen
// tokens, weighted by the query weight of the term. Terms that do not occur
// in the document (freq <= 0) score 0 under every model.
func TermScore(m Model, c CollectionStats, t TermStats, weight float64, freq int, docLen int) float64 {
	if freq <= 0 {
		return 0
	}
	f := float64(freq)
	dl := float64(QuantizeLength(docLen))
	switch m := m.(type) {
	case TF:
		return weight * f
	case TFIDF:
		idf := 1 + math.Log(float64(c.DocCount+1)/float64(t.DocFreq+1))
		norm := 1.0
		if dl > 0 {
			norm = 1 / math.Sqrt(dl)
		}
		return weight * math.Sqrt(f) * idf * norm
	case BM25:
		idf := math.Log(1 + (float64(c.DocCount)-float64(t.DocFreq)+0.5)/(float64(t.DocFreq)+0.5))
		lengthRatio := 0.0
		if c.AvgFieldLength > 0 {
			lengthRatio = dl / c.AvgFieldLength
		}
		return weight * idf * f / (f + m.K1*(1-m.B+m.B*lengthRatio))
	case PL2:
		if dl <= 0 {
			return 0
		}
		a := math.Log2(float64(c.DocCount+1) / (float64(t.DocFreq) + 0.5))
		tfn := f * math.Log2(1+m.C*c.AvgFieldLength/dl)
		return weight * a * (1 - 1/(1+tfn))
	case QL:
		pc := (float64(t.TotalTermFreq) + 1) / (c.sumTotalTermFreq() + 1)
		score := weight * (math.Log(1+f/(m.Mu*pc)) + math.Log(m.Mu/(dl+m.Mu)))
		if score > 0 {
			return score
		}
		return 0
	}
	return 0
}
