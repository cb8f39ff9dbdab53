package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// PostgREST talks to a Supabase/PostgREST endpoint over HTTP. Calls are not
// retried; a failed call fails the operation that issued it.
type PostgREST struct {
	client *resty.Client
	logger zerolog.Logger
}

// NewPostgREST creates a client for baseURL (the project URL, without the
// /rest/v1 suffix) authenticated with apiKey.
func NewPostgREST(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *PostgREST {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(timeout).
		SetHeader("apikey", apiKey).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")

	return &PostgREST{
		client: client,
		logger: logger.With().Str("component", "postgrest").Logger(),
	}
}

func (p *PostgREST) Select(ctx context.Context, table string, q Query, dest any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.Values()).
		Get("/" + table)
	if err := p.check("select", table, resp, err); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return &UpstreamError{Op: "select", Table: table, Status: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (p *PostgREST) Insert(ctx context.Context, table string, row any, dest any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		Post("/" + table)
	if err := p.check("insert", table, resp, err); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return &UpstreamError{Op: "insert", Table: table, Status: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (p *PostgREST) Patch(ctx context.Context, table string, filter Filter, patch any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("patch %s: refusing to update without a filter", table)
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetQueryParamsFromValues(filter.Values()).
		SetBody(patch).
		Patch("/" + table)
	return p.check("patch", table, resp, err)
}

func (p *PostgREST) check(op, table string, resp *resty.Response, err error) error {
	if err != nil {
		p.logger.Error().Err(err).Str("op", op).Str("table", table).Msg("upstream call failed")
		return &UpstreamError{Op: op, Table: table, Err: err}
	}
	if resp.IsError() {
		p.logger.Error().
			Str("op", op).
			Str("table", table).
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("upstream returned error")
		return &UpstreamError{Op: op, Table: table, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
