package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/memory"
	"github.com/syntrixbase/pager/pkg/model"
)

func accounts(t *testing.T) *keyspace.Namespace {
	t.Helper()
	ns, err := keyspace.ParseTemplate("account_id:{account_id}:org_id:{org_id}:bigorg")
	require.NoError(t, err)
	return ns
}

func TestGenerate(t *testing.T) {
	var recs []Record
	err := Generate(accounts(t), Options{Orgs: 2, AccountsPerOrg: 3}, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, recs, 6)

	assert.Equal(t, "account_id:1:org_id:1:bigorg", recs[0].Key)
	assert.Equal(t, "account_id:4:org_id:2:bigorg", recs[3].Key)
	assert.Equal(t, map[string]interface{}{"account_id": 6, "org_id": 2, "name": "myaccount_6"}, recs[5].Data)
}

func TestGenerate_Errors(t *testing.T) {
	assert.Error(t, Generate(accounts(t), Options{Orgs: -1}, func(Record) error { return nil }))

	other, err := keyspace.ParseTemplate("user:{user_id}")
	require.NoError(t, err)
	assert.ErrorIs(t, Generate(other, Options{Orgs: 1, AccountsPerOrg: 1}, func(Record) error { return nil }), model.ErrInvalidBinding)

	stop := errors.New("stop")
	calls := 0
	err = Generate(accounts(t), Options{Orgs: 1, AccountsPerOrg: 10}, func(Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestLoad(t *testing.T) {
	store := memory.New()
	n, err := Load(context.Background(), store, accounts(t), Options{Orgs: 3, AccountsPerOrg: 50, Concurrency: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.Equal(t, 150, store.Len())

	raw, err := store.Get(context.Background(), "account_id:101:org_id:3:bigorg")
	require.NoError(t, err)
	assert.Equal(t, `{"account_id":101,"name":"myaccount_101","org_id":3}`, string(raw))

	doc, err := codec.DecodeDocument("k", raw)
	require.NoError(t, err)
	assert.Equal(t, "myaccount_101", doc.Data["name"])
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, memory.New(), accounts(t), Options{Orgs: 1, AccountsPerOrg: 10}, nil)
	assert.Error(t, err)
}
