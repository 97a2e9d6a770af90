// Package ranking scores OCR detections against expanded query terms and orders hits.
package ranking

const (
	// TitleWeight is added to a hit whose detection is at least the page's 90th-percentile height.
	TitleWeight = 3.0
	// TableWeight is added to a hit whose row bucket is dense.
	TableWeight = 1.0
	// BaseScore is the score of any matching detection.
	BaseScore = 1.0
	// RowBucketHeight is the vertical bucket size, in OCR pixels, used to group rows.
	RowBucketHeight = 5.0
	// TableRowDensity is the minimum number of detections in a row bucket for it to count as tabular.
	TableRowDensity = 12
	// TitlePercentile is the height percentile a detection must reach to count as a title.
	TitlePercentile = 0.9
	// EvidenceBias is added to QA confidence so evidence outranks ordinary search hits.
	EvidenceBias = 1.0
	// DefaultConfidence is used when the QA backend omits a confidence.
	DefaultConfidence = 0.5
)

// PageFeatures holds the per-page layout statistics used for scoring.
type PageFeatures struct {
	// TitleHeight is the 90th-percentile detection height.
	TitleHeight float64
	// Rows counts detections per row bucket.
	Rows map[int]int
}

// IsTitle reports whether a detection of height h is a title candidate.
func (f *PageFeatures) IsTitle(h float64) bool {
	return h >= f.TitleHeight
}

// IsTableLike reports whether a detection at y sits in a dense row.
func (f *PageFeatures) IsTableLike(y float64) bool {
	n, ok := f.Rows[RowBucket(y)]
	if !ok {
		n = 1
	}
	return n >= TableRowDensity
}
