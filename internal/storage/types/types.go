// Package types defines the DocumentStore contract shared by all storage backends.
package types

import (
	"context"
	"fmt"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/pkg/model"
)

// DocumentStore is a remote keyed store of encoded documents. Every method is
// read-only with respect to stored documents.
type DocumentStore interface {
	// ScanKeys enumerates keys matching pattern, calling fn once per batch.
	// Batches are not sorted and may be empty. Returning an error from fn stops the scan.
	ScanKeys(ctx context.Context, pattern keyspace.Pattern, fn func(batch []string) error) error

	// GetMany returns one slot per input key, in input order. Missing keys yield nil.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)

	// Get returns a single value or model.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// CompileProcedure prepares the scan-filter-sort-slice routine once.
	// Stores without scripting return model.ErrProcedureUnsupported.
	CompileProcedure(spec ProcedureSpec) (Procedure, error)

	// RunProcedure executes a compiled procedure. Failures are *model.ProcedureError.
	RunProcedure(ctx context.Context, proc Procedure, args ProcedureArgs) (*ProcedureResult, error)

	// Close closes the connection to the backend
	Close(ctx context.Context) error
}

// Writer stores documents. Listing never writes; seeding and tests do.
type Writer interface {
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ChangeFeed is implemented by stores that report their own writes.
// fn is called after each Put or Delete; a nil value means the key was deleted.
type ChangeFeed interface {
	OnChange(fn func(key string, value []byte))
}

// Store is a DocumentStore that can also be written to.
type Store interface {
	DocumentStore
	Writer
}

// ProcedureSpec is the compile-time configuration of a procedure.
type ProcedureSpec struct {
	// Sort enables the sort step. Without it documents stay in key order.
	Sort bool
	Mode model.CompareMode
}

// Name identifies the compiled variant, e.g. "scan_page_sorted_decoded".
func (s ProcedureSpec) Name() string {
	variant := "unsorted"
	if s.Sort {
		variant = "sorted"
	}
	mode := s.Mode
	if mode == "" {
		mode = model.ModeDecoded
	}
	return fmt.Sprintf("scan_page_%s_%s", variant, mode)
}

// Procedure is a compiled, reusable procedure handle.
type Procedure interface {
	Spec() ProcedureSpec
}

// ProcedureArgs are the per-call parameters of a procedure.
type ProcedureArgs struct {
	Pattern keyspace.Pattern
	Filter  *model.Filter
	Order   *model.Order
	Offset  int
	Size    int
}

// Entry is one encoded document returned by a procedure.
type Entry struct {
	Key   string
	Value []byte
}

// ProcedureResult is the page computed store-side.
type ProcedureResult struct {
	// Total is the number of matching documents before slicing.
	Total   int
	Entries []Entry
}
