package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// Catalog returns the category/subject/topic tree.
func (c *Client) Catalog(ctx context.Context) (*model.Catalog, error) {
	var out model.Catalog
	if err := c.Do(ctx, http.MethodGet, "/questions/catalog", nil, &out); err != nil {
		return nil, err
	}
	if out.Categories == nil {
		out.Categories = []model.CatalogCategory{}
	}
	if err := validator.Slice(out.Categories); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &out, nil
}

// CriteriaQuery encodes criteria as query parameters, omitting empty fields.
func CriteriaQuery(cr model.Criteria) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("category", cr.Category)
	set("subject", cr.Subject)
	set("topic", cr.Topic)
	set("difficulty", string(cr.Difficulty))
	if cr.Status != model.QuestionStatusAll {
		set("status", string(cr.Status))
	}
	return q
}

// QuestionIDs returns the ids of questions matching criteria, up to limit (0 = server default).
func (c *Client) QuestionIDs(ctx context.Context, cr model.Criteria, limit int) (*model.QuestionPool, error) {
	q := CriteriaQuery(cr)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/questions/ids"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var out model.QuestionPool
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.QuestionIDs == nil {
		out.QuestionIDs = []string{}
	}
	if out.Total < len(out.QuestionIDs) {
		out.Total = len(out.QuestionIDs)
	}
	return &out, nil
}
