package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

func newPattern(t *testing.T, bindings map[string]string) keyspace.Pattern {
	t.Helper()
	ns, err := keyspace.ParseTemplate("account_id:{account_id}:org_id:{org_id}:bigorg")
	require.NoError(t, err)
	p, err := ns.Resolve(bindings)
	require.NoError(t, err)
	return p
}

func TestStore_ScanKeys(t *testing.T) {
	ctx := context.Background()
	s := New().WithBatchSize(2)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("account_id:%d:org_id:1:bigorg", i), []byte(`{}`)))
	}
	require.NoError(t, s.Put(ctx, "account_id:9:org_id:2:bigorg", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "account_id:1:org_id:1:bigorg:extra", []byte(`{}`)))

	var batches [][]string
	err := s.ScanKeys(ctx, newPattern(t, map[string]string{"org_id": "1"}), func(batch []string) error {
		batches = append(batches, append([]string(nil), batch...))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, batches, 3)

	var all []string
	for _, b := range batches {
		all = append(all, b...)
	}
	assert.Len(t, all, 5)
	assert.NotContains(t, all, "account_id:1:org_id:1:bigorg:extra")
	assert.NotContains(t, all, "account_id:9:org_id:2:bigorg")
}

func TestStore_ScanKeys_StopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	s := New().WithBatchSize(1)
	require.NoError(t, s.Put(ctx, "account_id:1:org_id:1:bigorg", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "account_id:2:org_id:1:bigorg", []byte(`{}`)))

	stop := assert.AnError
	calls := 0
	err := s.ScanKeys(ctx, newPattern(t, nil), func([]string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStore_ScanKeys_Canceled(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(context.Background(), "account_id:1:org_id:1:bigorg", []byte(`{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ScanKeys(ctx, newPattern(t, nil), func([]string) error { return nil })
	assert.ErrorIs(t, err, model.ErrCanceled)
}

func TestStore_GetMany(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, "a", []byte(`{"n":1}`)))
	require.NoError(t, s.Put(ctx, "c", []byte(`{"n":3}`)))

	vals, err := s.GetMany(ctx, []string{"c", "b", "a"})
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, `{"n":3}`, string(vals[0]))
	assert.Nil(t, vals[1])
	assert.Equal(t, `{"n":1}`, string(vals[2]))

	// returned slices are copies
	vals[0][0] = 'x'
	again, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, `{"n":3}`, string(again))
}

func TestStore_GetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte(`{}`)))
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Delete(ctx, "k"))
	assert.ErrorIs(t, s.Delete(ctx, "k"), model.ErrNotFound)
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Close(ctx))
}

func TestStore_ProceduresUnsupported(t *testing.T) {
	s := New()
	_, err := s.CompileProcedure(types.ProcedureSpec{Sort: true})
	assert.ErrorIs(t, err, model.ErrProcedureUnsupported)

	_, err = s.RunProcedure(context.Background(), nil, types.ProcedureArgs{})
	assert.ErrorIs(t, err, model.ErrProcedureUnsupported)
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := New()

	type change struct {
		key   string
		value []byte
	}
	var got []change
	s.OnChange(func(key string, value []byte) {
		got = append(got, change{key, value})
	})

	require.NoError(t, s.Put(ctx, "a", []byte(`{"x":1}`)))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), model.ErrNotFound)

	assert.Equal(t, []change{
		{"a", []byte(`{"x":1}`)},
		{"a", nil},
	}, got)
}
