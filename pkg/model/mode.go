package model

// CompareMode selects how field values are read for filtering and sorting.
type CompareMode string

const (
	// ModeDecoded decodes every candidate document and compares typed values.
	// Always correct, costs one decode per candidate.
	ModeDecoded CompareMode = "decoded"

	// ModeRaw extracts field text straight from the encoded document with a
	// pattern match and compares it as text. Faster, but only correct when the
	// encoded values sort lexicographically: unpadded numbers do not ("10" < "9").
	ModeRaw CompareMode = "raw"
)

// IsValid checks if the mode is known.
func (m CompareMode) IsValid() bool {
	return m == ModeDecoded || m == ModeRaw
}
