// Package seed fills a store with a synthetic account dataset: orgs × accounts
// documents such as {"account_id":7,"name":"myaccount_7","org_id":1} stored
// under account_id:7:org_id:1:bigorg.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
)

const (
	AccountComponent = "account_id"
	OrgComponent     = "org_id"
)

// Options sizes the dataset.
type Options struct {
	Orgs           int
	AccountsPerOrg int
	// NameFormat renders the account name from its id.
	NameFormat string
	// Concurrency bounds the writes in flight.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Orgs:           100,
		AccountsPerOrg: 1000,
		NameFormat:     "myaccount_%d",
		Concurrency:    16,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.NameFormat == "" {
		o.NameFormat = d.NameFormat
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
}

// Record is one generated document.
type Record struct {
	Key  string
	Data map[string]interface{}
}

// Generate calls fn for every account in id order. Account ids run from 1
// across all orgs, so org n holds ids (n-1)*AccountsPerOrg+1 onwards.
func Generate(ns *keyspace.Namespace, opts Options, fn func(Record) error) error {
	opts.applyDefaults()
	if opts.Orgs < 0 || opts.AccountsPerOrg < 0 {
		return fmt.Errorf("seed: orgs and accounts must be >= 0")
	}

	id := 1
	for org := 1; org <= opts.Orgs; org++ {
		for i := 0; i < opts.AccountsPerOrg; i++ {
			key, err := ns.Key(map[string]string{
				AccountComponent: strconv.Itoa(id),
				OrgComponent:     strconv.Itoa(org),
			})
			if err != nil {
				return fmt.Errorf("seed: namespace %s: %w", ns, err)
			}
			rec := Record{Key: key, Data: map[string]interface{}{
				AccountComponent: id,
				OrgComponent:     org,
				"name":           fmt.Sprintf(opts.NameFormat, id),
			}}
			if err := fn(rec); err != nil {
				return err
			}
			id++
		}
	}
	return nil
}

// Load writes the dataset to w and returns the number of documents written.
func Load(ctx context.Context, w types.Writer, ns *keyspace.Namespace, opts Options, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	var written atomic.Int64
	genErr := Generate(ns, opts, func(rec Record) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		raw, err := codec.Encode(rec.Data)
		if err != nil {
			return fmt.Errorf("seed: encode %s: %w", rec.Key, err)
		}
		g.Go(func() error {
			if err := w.Put(gctx, rec.Key, raw); err != nil {
				return fmt.Errorf("seed: put %s: %w", rec.Key, err)
			}
			written.Add(1)
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return int(written.Load()), err
	}
	if genErr != nil {
		return int(written.Load()), genErr
	}

	logger.Info("Dataset seeded",
		"namespace", ns.String(),
		"documents", written.Load(),
		"orgs", opts.Orgs,
		"duration", time.Since(start))
	return int(written.Load()), nil
}
