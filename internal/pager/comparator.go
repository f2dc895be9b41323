package pager

import (
	"regexp"
	"sort"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// candidate is one stored document on its way into a page.
type candidate struct {
	key string
	raw []byte
	doc *model.Document // nil in raw mode
}

// extractor reads the value of one field from a candidate.
type extractor func(c *candidate) interface{}

func decodedField(field string) extractor {
	return func(c *candidate) interface{} {
		v, _ := c.doc.Field(field)
		return v
	}
}

// rawField matches the encoded text instead of decoding it. A quoted value is
// preferred; otherwise the bare token up to the next ',', '}' or space is used.
// The result is always text, so unpadded numbers sort as strings.
func rawField(field string) extractor {
	name := `"` + regexp.QuoteMeta(field) + `"\s*:\s*`
	quoted := regexp.MustCompile(name + `"([^"]*)"`)
	bare := regexp.MustCompile(name + `([^,}\s]+)`)
	return func(c *candidate) interface{} {
		if m := quoted.FindSubmatch(c.raw); m != nil {
			return string(m[1])
		}
		if m := bare.FindSubmatch(c.raw); m != nil {
			return string(m[1])
		}
		return nil
	}
}

func newExtractor(mode model.CompareMode, field string) extractor {
	if mode == model.ModeRaw {
		return rawField(field)
	}
	return decodedField(field)
}

// selectCandidates applies the filter and the sort of req. Without an order
// candidates come out in key order.
func selectCandidates(cands []*candidate, req model.PageRequest, mode model.CompareMode) []*candidate {
	matched := cands
	if req.Filter != nil {
		get := newExtractor(mode, req.Filter.Field)
		matched = make([]*candidate, 0, len(cands))
		for _, c := range cands {
			if s, ok := get(c).(string); ok && req.Filter.MatchText(s) {
				matched = append(matched, c)
			}
		}
	}

	if req.Order == nil {
		sort.Slice(matched, func(i, j int) bool { return matched[i].key < matched[j].key })
		return matched
	}

	get := newExtractor(mode, req.Order.Field)
	values := make(map[string]interface{}, len(matched))
	for _, c := range matched {
		values[c.key] = get(c)
	}
	desc := req.Order.Descending()
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if cmp := model.CompareValues(values[a.key], values[b.key]); cmp != 0 {
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.key < b.key
	})
	return matched
}

// decodeEntries turns encoded entries into documents, dropping those that do
// not decode. It returns the number dropped.
func decodeEntries(entries []types.Entry) ([]model.Document, int) {
	docs := make([]model.Document, 0, len(entries))
	failed := 0
	for _, e := range entries {
		doc, err := codec.DecodeDocument(e.Key, e.Value)
		if err != nil {
			failed++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failed
}
