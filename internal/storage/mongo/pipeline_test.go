package mongo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

func testPattern(t *testing.T, bindings map[string]string) keyspace.Pattern {
	t.Helper()
	ns, err := keyspace.ParseTemplate("account_id:{account_id}:org_id:{org_id}:bigorg")
	require.NoError(t, err)
	p, err := ns.Resolve(bindings)
	require.NoError(t, err)
	return p
}

func TestMakeFilterBSON(t *testing.T) {
	args := types.ProcedureArgs{Pattern: testPattern(t, map[string]string{"org_id": "7"})}

	got := makeFilterBSON(args)
	assert.Equal(t, bson.D{
		{Key: "_id", Value: bson.D{{Key: "$regex", Value: `^account_id:[^:]*:org_id:7:bigorg$`}}},
		{Key: "decoded", Value: true},
	}, got)

	args.Filter = &model.Filter{Field: "name", Op: model.OpPrefix, Value: "my.acc"}
	got = makeFilterBSON(args)
	require.Len(t, got, 3)
	assert.Equal(t, bson.E{Key: "data.name", Value: bson.D{{Key: "$regex", Value: `^my\.acc`}}}, got[2])

	args.Filter = &model.Filter{Field: "name", Op: model.OpContains, Value: "a+b"}
	got = makeFilterBSON(args)
	assert.Equal(t, bson.E{Key: "data.name", Value: bson.D{{Key: "$regex", Value: `a\+b`}}}, got[2])
}

func TestMakeSortBSON(t *testing.T) {
	order := &model.Order{Field: "name", Direction: model.Desc}

	assert.Equal(t, bson.D{{Key: "data.name", Value: -1}, {Key: "_id", Value: 1}},
		makeSortBSON(types.ProcedureSpec{Sort: true}, order))
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}},
		makeSortBSON(types.ProcedureSpec{Sort: false}, order))
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}},
		makeSortBSON(types.ProcedureSpec{Sort: true}, nil))
}

func TestMakePipeline(t *testing.T) {
	args := types.ProcedureArgs{Pattern: testPattern(t, nil), Offset: 20, Size: 10}
	p := makePipeline(types.ProcedureSpec{Sort: true}, args)
	require.Len(t, p, 2)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, "$facet", p[1][0].Key)

	facet := p[1][0].Value.(bson.D)
	page := facet[1].Value.(bson.A)
	assert.Equal(t, bson.D{{Key: "$skip", Value: int64(20)}}, page[1])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(10)}}, page[2])
}

func TestToBSONData(t *testing.T) {
	got := toBSONData(map[string]interface{}{
		"i":    json.Number("42"),
		"f":    json.Number("1.5"),
		"big":  json.Number("1e400"),
		"s":    "x",
		"b":    true,
		"none": nil,
	})
	assert.Equal(t, int64(42), got["i"])
	assert.Equal(t, 1.5, got["f"])
	assert.Equal(t, "1e400", got["big"])
	assert.Equal(t, "x", got["s"])
	assert.Equal(t, true, got["b"])
	assert.Nil(t, got["none"])
}

func TestCompileProcedure(t *testing.T) {
	s := NewDocumentStore(nil, nil, 0, 0)

	proc, err := s.CompileProcedure(types.ProcedureSpec{Sort: true})
	require.NoError(t, err)
	assert.Equal(t, model.ModeDecoded, proc.Spec().Mode)

	_, err = s.CompileProcedure(types.ProcedureSpec{Sort: true, Mode: model.ModeRaw})
	assert.ErrorIs(t, err, model.ErrProcedureUnsupported)
}
