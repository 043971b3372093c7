package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultPageCount is the per-request record count used by the
// auto-paginating variants.
const DefaultPageCount = 100

func fetchPage[T any](ctx context.Context, c *Client, endpoint string, page string, count int) (pagedResponse[T], error) {
	var out pagedResponse[T]
	q := url.Values{}
	q.Set("count", fmt.Sprintf("%v", count))
	if page != "" {
		q.Set("page", page)
	}
	raw, err := c.do(ctx, http.MethodGet, "/v1/trading/"+endpoint+"?"+q.Encode(), nil, true, true)
	if err != nil {
		if errors.Is(err, errNoData) {
			return out, nil
		}
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("fail to decode %v page: %w", endpoint, err)
	}
	return out, nil
}

// fetchAll walks the cursor chain until np is empty or maxPages pages
// have been consumed. maxPages <= 0 means unbounded.
func fetchAll[T any](ctx context.Context, c *Client, endpoint string, count, maxPages int) ([]T, error) {
	var all []T
	page := ""
	for i := 0; maxPages <= 0 || i < maxPages; i++ {
		res, err := fetchPage[T](ctx, c, endpoint, page, count)
		if err != nil {
			return nil, err
		}
		all = append(all, res.D...)
		if res.Np == "" {
			break
		}
		page = res.Np
	}
	return all, nil
}

// GetFills returns one page of fill history plus the next-page cursor.
func (c *Client) GetFills(ctx context.Context, page string, count int) ([]HistoryFill, string, error) {
	res, err := fetchPage[HistoryFill](ctx, c, "fills", page, count)
	return res.D, res.Np, err
}

func (c *Client) GetOrderHistory(ctx context.Context, page string, count int) ([]HistoryOrder, string, error) {
	res, err := fetchPage[HistoryOrder](ctx, c, "order-history", page, count)
	return res.D, res.Np, err
}

func (c *Client) GetPositionHistory(ctx context.Context, page string, count int) ([]HistoryPosition, string, error) {
	res, err := fetchPage[HistoryPosition](ctx, c, "position-history", page, count)
	return res.D, res.Np, err
}

func (c *Client) GetAccountHistory(ctx context.Context, page string, count int) ([]HistoryAccountEvent, string, error) {
	res, err := fetchPage[HistoryAccountEvent](ctx, c, "account-history", page, count)
	return res.D, res.Np, err
}

// GetAllFills auto-paginates fills up to maxPages pages (<= 0 for all).
func (c *Client) GetAllFills(ctx context.Context, maxPages int) ([]HistoryFill, error) {
	return fetchAll[HistoryFill](ctx, c, "fills", DefaultPageCount, maxPages)
}

func (c *Client) GetAllOrderHistory(ctx context.Context, maxPages int) ([]HistoryOrder, error) {
	return fetchAll[HistoryOrder](ctx, c, "order-history", DefaultPageCount, maxPages)
}

func (c *Client) GetAllPositionHistory(ctx context.Context, maxPages int) ([]HistoryPosition, error) {
	return fetchAll[HistoryPosition](ctx, c, "position-history", DefaultPageCount, maxPages)
}

func (c *Client) GetAllAccountHistory(ctx context.Context, maxPages int) ([]HistoryAccountEvent, error) {
	return fetchAll[HistoryAccountEvent](ctx, c, "account-history", DefaultPageCount, maxPages)
}
