package pager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/pager/pkg/model"
)

func TestNewRemoteScanner_Unsupported(t *testing.T) {
	_, err := NewRemoteScanner(newMemoryStore(t, nil), model.ModeDecoded, nil)
	assert.ErrorIs(t, err, model.ErrProcedureUnsupported)

	store, _ := newRedisStore(t, nil)
	_, err = NewRemoteScanner(store, model.CompareMode("binary"), nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestRemoteScanner_Execute(t *testing.T) {
	store, _ := newRedisStore(t, fixture())
	r, err := NewRemoteScanner(store, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModeDecoded, r.Mode())

	res, err := r.Execute(context.Background(), resolveAll(t), model.PageRequest{
		Size:   3,
		Filter: &model.Filter{Field: "name", Op: model.OpPrefix, Value: "myaccount"},
		Order:  &model.Order{Field: "account_id", Direction: model.Desc},
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyRemote, res.Strategy)
	assert.Equal(t, []string{
		"account_id:15:org_id:1:bigorg",
		"account_id:14:org_id:2:bigorg",
		"account_id:13:org_id:1:bigorg",
	}, keysOf(res.Page))
	assert.Equal(t, 3, res.Page.Total)
	assert.False(t, res.Page.HasMore)
	assert.Equal(t, 3, res.Candidates)
}

func TestRemoteScanner_BoundPattern(t *testing.T) {
	store, _ := newRedisStore(t, fixture())
	r, err := NewRemoteScanner(store, model.ModeDecoded, nil)
	require.NoError(t, err)

	pattern, err := testNamespace(t).Resolve(map[string]string{"org_id": "2"})
	require.NoError(t, err)
	res, err := r.Execute(context.Background(), pattern, model.PageRequest{Size: 2})
	require.NoError(t, err)
	// the broken document lives in org 2 and is not counted in decoded mode
	assert.Equal(t, 7, res.Page.Total)
	assert.Equal(t, []string{"account_id:10:org_id:2:bigorg", "account_id:12:org_id:2:bigorg"}, keysOf(res.Page))
	assert.True(t, res.Page.HasMore)
}

func TestRemoteScanner_RawModeSkipsUndecodable(t *testing.T) {
	store, _ := newRedisStore(t, fixture())
	r, err := NewRemoteScanner(store, model.ModeRaw, nil)
	require.NoError(t, err)
	require.Equal(t, model.ModeRaw, r.Mode())

	res, err := r.Execute(context.Background(), resolveAll(t), model.PageRequest{
		Size:   5,
		Filter: &model.Filter{Field: "name", Op: model.OpContains, Value: "bro"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page.Total)
	assert.Empty(t, res.Page.Documents)
	assert.Equal(t, 1, res.Page.Skipped)
	assert.Equal(t, 1, res.DecodeFailures)
}

func TestRemoteScanner_RawNumericOrder(t *testing.T) {
	data := map[string]string{
		"account_id:9:org_id:1:bigorg":  `{"account_id":9}`,
		"account_id:10:org_id:1:bigorg": `{"account_id":10}`,
	}
	store, _ := newRedisStore(t, data)
	req := model.PageRequest{Size: 10, Order: &model.Order{Field: "account_id"}}

	raw, err := NewRemoteScanner(store, model.ModeRaw, nil)
	require.NoError(t, err)
	res, err := raw.Execute(context.Background(), resolveAll(t), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"account_id:10:org_id:1:bigorg", "account_id:9:org_id:1:bigorg"}, keysOf(res.Page))

	decoded, err := NewRemoteScanner(store, model.ModeDecoded, nil)
	require.NoError(t, err)
	res, err = decoded.Execute(context.Background(), resolveAll(t), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"account_id:9:org_id:1:bigorg", "account_id:10:org_id:1:bigorg"}, keysOf(res.Page))
}

func TestRemoteScanner_Errors(t *testing.T) {
	store, mr := newRedisStore(t, fixture())
	r, err := NewRemoteScanner(store, model.ModeDecoded, nil)
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), resolveAll(t), model.PageRequest{Size: 0})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Execute(ctx, resolveAll(t), model.PageRequest{Size: 1})
	assert.ErrorIs(t, err, model.ErrCanceled)

	mr.SetError("ERR server is busy")
	_, err = r.Execute(context.Background(), resolveAll(t), model.PageRequest{Size: 1})
	assert.ErrorIs(t, err, model.ErrProcedureExecution)
}
