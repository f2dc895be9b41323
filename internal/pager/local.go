package pager

import (
	"context"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// Paginate filters, sorts and slices an already materialized set of documents.
// An offset past the end yields an empty page, never an error.
func Paginate(docs []model.Document, req model.PageRequest) (*model.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cands := make([]*candidate, len(docs))
	for i := range docs {
		cands[i] = &candidate{key: docs[i].Key, raw: docs[i].Raw, doc: &docs[i]}
	}
	matched := selectCandidates(cands, req, model.ModeDecoded)

	start, end := req.Window(len(matched))
	page := make([]model.Document, 0, end-start)
	for _, c := range matched[start:end] {
		page = append(page, *c.doc)
	}
	return model.NewPage(req, page, len(matched), 0), nil
}

// PaginateEntries pages encoded entries. In decoded mode entries that do not
// decode are dropped before filtering and are not part of Total. In raw mode
// they take part in filtering and sorting and are dropped from the page after
// slicing, counted in Page.Skipped. The second result is the number of decode
// failures seen.
func PaginateEntries(entries []types.Entry, req model.PageRequest, mode model.CompareMode) (*model.Page, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	if mode != model.ModeRaw {
		docs, failed := decodeEntries(entries)
		page, err := Paginate(docs, req)
		return page, failed, err
	}

	cands := make([]*candidate, len(entries))
	for i, e := range entries {
		cands[i] = &candidate{key: e.Key, raw: e.Value}
	}
	matched := selectCandidates(cands, req, model.ModeRaw)

	start, end := req.Window(len(matched))
	window := make([]types.Entry, 0, end-start)
	for _, c := range matched[start:end] {
		window = append(window, types.Entry{Key: c.key, Value: c.raw})
	}
	docs, failed := decodeEntries(window)
	return model.NewPage(req, docs, len(matched), failed), failed, nil
}

// Collect pulls every document under pattern: the keys through ScanKeys and
// the values through GetMany, one scan batch at a time. Keys that vanish
// between the two calls are left out. Memory grows with the candidate set.
func Collect(ctx context.Context, store types.DocumentStore, pattern keyspace.Pattern) ([]types.Entry, error) {
	var entries []types.Entry
	seen := make(map[string]struct{})
	err := store.ScanKeys(ctx, pattern, func(batch []string) error {
		keys := make([]string, 0, len(batch))
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return nil
		}

		vals, err := store.GetMany(ctx, keys)
		if err != nil {
			return err
		}
		for i, k := range keys {
			if vals[i] != nil {
				entries = append(entries, types.Entry{Key: k, Value: vals[i]})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
