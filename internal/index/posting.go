package index

// DocHandle is the internal, index-local document number. Handles are only
// meaningful within the index instance that assigned them.
type DocHandle int

// Well-known field names.
const (
	FieldID       = "id"
	FieldContents = "contents"
)

type Posting struct {
	Handle    DocHandle
	Frequency int
}

// PostingList is ordered by ascending handle.
type PostingList []Posting

// TermVector maps each term of one document field to its frequency.
type TermVector map[string]int

// Length is the number of tokens the vector was built from.
func (tv TermVector) Length() int {
	n := 0
	for _, f := range tv {
		n += f
	}
	return n
}

// Statistics is the read-only term-statistics surface the scoring engine
// consumes.
type Statistics interface {
	DocFreq(term, field string) int64
	CollectionFreq(term, field string) int64
	DocLength(doc DocHandle, field string) (int, error)
	AvgFieldLength(field string) float64
	CollectionSize() int64
	TermVector(doc DocHandle, field string) (TermVector, error)
}

// Reader extends Statistics with the posting and identifier lookups needed
// to evaluate queries.
type Reader interface {
	Statistics
	Postings(term, field string) PostingList
	Handles(docID string) []DocHandle
	ExternalID(doc DocHandle) (string, error)
}
