package pager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/config"
	"github.com/syntrixbase/pager/internal/storage/memory"
	"github.com/syntrixbase/pager/internal/storage/redis"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

func testNamespace(t *testing.T) *keyspace.Namespace {
	t.Helper()
	ns, err := keyspace.ParseTemplate("account_id:{account_id}:org_id:{org_id}:bigorg")
	require.NoError(t, err)
	return ns
}

func resolveAll(t *testing.T) keyspace.Pattern {
	t.Helper()
	p, err := testNamespace(t).Resolve(nil)
	require.NoError(t, err)
	return p
}

func doc(t *testing.T, key string, data map[string]interface{}) model.Document {
	t.Helper()
	raw, err := codec.Encode(data)
	require.NoError(t, err)
	d, err := codec.DecodeDocument(key, raw)
	require.NoError(t, err)
	return d
}

func keysOf(page *model.Page) []string {
	keys := make([]string, len(page.Documents))
	for i, d := range page.Documents {
		keys[i] = d.Key
	}
	return keys
}

// fixture is a dataset with ties, missing fields, mixed types, a second org,
// and one value that is not a valid document.
func fixture() map[string]string {
	data := map[string]string{}
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan", "judy", "mallory", "niaj"}
	for i, name := range names {
		id := i + 1
		org := 1 + i%2
		score := fmt.Sprintf(`,"score":%d`, (id*7)%5)
		if id%4 == 0 {
			score = ""
		}
		data[fmt.Sprintf("account_id:%d:org_id:%d:bigorg", id, org)] =
			fmt.Sprintf(`{"account_id":%d,"name":"%s","org_id":%d%s}`, id, name, org, score)
	}
	data["account_id:13:org_id:1:bigorg"] = `{"account_id":13,"name":"myaccount_13","org_id":1,"score":"high"}`
	data["account_id:14:org_id:2:bigorg"] = `{"account_id":14,"name":"myaccount_14","org_id":2,"score":true}`
	data["account_id:15:org_id:1:bigorg"] = `{"account_id":15,"name":"myaccount_15","org_id":1,"score":null}`
	data["account_id:16:org_id:2:bigorg"] = `{"account_id":16,"name":"broken"`
	// outside the namespace
	data["account_id:17:org_id:1:bigorg:archived"] = `{"account_id":17,"name":"zed"}`
	return data
}

func fillStore(t *testing.T, w types.Writer, data map[string]string) {
	t.Helper()
	for k, v := range data {
		require.NoError(t, w.Put(context.Background(), k, []byte(v)))
	}
}

func newMemoryStore(t *testing.T, data map[string]string) *memory.Store {
	t.Helper()
	s := memory.New().WithBatchSize(4)
	fillStore(t, s, data)
	return s
}

func newRedisStore(t *testing.T, data map[string]string) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redis.New(client, config.RedisConfig{ScanCount: 5, MGetChunk: 3, FetchConcurrency: 2}, 2*time.Second)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	fillStore(t, s, data)
	return s, mr
}
