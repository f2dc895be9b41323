package mongo

import (
	"encoding/json"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

func dataField(field string) string {
	return "data." + field
}

func makeFilterBSON(args types.ProcedureArgs) bson.D {
	match := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$regex", Value: args.Pattern.Regexp()}}},
		{Key: "decoded", Value: true},
	}
	if f := args.Filter; f != nil {
		expr := regexp.QuoteMeta(f.Value)
		if f.Op == model.OpPrefix {
			expr = "^" + expr
		}
		// $regex only ever matches string values
		match = append(match, bson.E{Key: dataField(f.Field), Value: bson.D{{Key: "$regex", Value: expr}}})
	}
	return match
}

func makeSortBSON(spec types.ProcedureSpec, order *model.Order) bson.D {
	sort := bson.D{}
	if spec.Sort && order != nil {
		dir := 1
		if order.Descending() {
			dir = -1
		}
		sort = append(sort, bson.E{Key: dataField(order.Field), Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

// makePipeline counts all matches and cuts one page in a single round-trip.
func makePipeline(spec types.ProcedureSpec, args types.ProcedureArgs) mongo.Pipeline {
	page := bson.A{
		bson.D{{Key: "$sort", Value: makeSortBSON(spec, args.Order)}},
		bson.D{{Key: "$skip", Value: int64(args.Offset)}},
		bson.D{{Key: "$limit", Value: int64(args.Size)}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "raw", Value: 1}}}},
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: makeFilterBSON(args)}},
		{{Key: "$facet", Value: bson.D{
			{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "n"}}}},
			{Key: "page", Value: page},
		}}},
	}
}

type facetResult struct {
	Total []struct {
		N int64 `bson:"n"`
	} `bson:"total"`
	Page []storedDocument `bson:"page"`
}

type storedDocument struct {
	ID  string `bson:"_id"`
	Raw string `bson:"raw"`
	// Decoded is false for values that are not valid documents.
	Decoded bool                   `bson:"decoded"`
	Data    map[string]interface{} `bson:"data,omitempty"`
}

// toBSONData converts decoded JSON fields to BSON-friendly values. Integers
// stay integers so numeric ordering matches the decoded comparator.
func toBSONData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
			} else if f, err := n.Float64(); err == nil {
				out[k] = f
			} else {
				out[k] = n.String()
			}
			continue
		}
		out[k] = v
	}
	return out
}
