package rest

import (
	"fmt"

	"github.com/syntrixbase/pager/internal/pager"
	"github.com/syntrixbase/pager/pkg/model"
)

// ListQuery holds the query parameters of a listing request.
type ListQuery struct {
	Offset      int    `schema:"offset"`
	Size        int    `schema:"size"`
	Sort        string `schema:"sort"`
	Direction   string `schema:"direction"`
	FilterField string `schema:"filter_field"`
	FilterOp    string `schema:"filter_op"`
	FilterValue string `schema:"filter_value"`
	Strategy    string `schema:"strategy"`
}

func (q ListQuery) pageRequest(defaultSize int) (model.PageRequest, pager.Strategy, error) {
	req := model.PageRequest{Offset: q.Offset, Size: q.Size}
	if req.Size == 0 {
		req.Size = defaultSize
	}
	if q.Sort != "" {
		req.Order = &model.Order{Field: q.Sort, Direction: model.Direction(q.Direction)}
	} else if q.Direction != "" {
		return req, "", fmt.Errorf("%w: direction given without sort", model.ErrInvalidRequest)
	}
	if q.FilterValue != "" && q.FilterField == "" {
		return req, "", fmt.Errorf("%w: filter_value given without filter_field", model.ErrInvalidRequest)
	}
	if q.FilterField != "" || q.FilterOp != "" {
		op := model.FilterOp(q.FilterOp)
		if op == "" {
			op = model.OpContains
		}
		req.Filter = &model.Filter{Field: q.FilterField, Op: op, Value: q.FilterValue}
	}
	strategy, err := pager.ParseStrategy(q.Strategy)
	if err != nil {
		return req, "", err
	}
	return req, strategy, nil
}

// ListResponse is one page of a listing.
type ListResponse struct {
	*model.Page
	Strategy string `json:"strategy"`
}

type NamespaceResponse struct {
	Name       string   `json:"name"`
	Template   string   `json:"template"`
	Components []string `json:"components"`
}
