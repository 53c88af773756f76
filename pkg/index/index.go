// Package index mirrors accounts and posts into an Elasticsearch-compatible
// search backend over its document API. Indexing is best effort: the local
// database is the source of truth and the sink can be disabled entirely.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/models"
	"igmirror/pkg/retry"
)

const (
	accountIndex = "accounts"
	postIndex    = "posts"
)

// AccountDoc is the searchable projection of an account.
type AccountDoc struct {
	Username       string    `json:"username"`
	PostsCount     int       `json:"posts_count"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	Bio            string    `json:"bio,omitempty"`
	Website        string    `json:"website,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}

// PostDoc is the searchable projection of a post.
type PostDoc struct {
	AccountID   int64     `json:"account_id"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Count       *int      `json:"count,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PostedAt    time.Time `json:"posted_at,omitempty"`
}

// Sink writes documents to the search backend.
type Sink interface {
	IndexAccount(ctx context.Context, id int64, doc AccountDoc) error
	DeleteAccount(ctx context.Context, id int64) error
	IndexPost(ctx context.Context, id int64, doc PostDoc) error
	DeletePost(ctx context.Context, id int64) error
}

// Client is the HTTP Sink.
type Client struct {
	http    *resty.Client
	retrier *retry.Retrier
	log     logger.Logger
}

// NewClient returns a Sink talking to the backend at baseURL.
func NewClient(baseURL string, log logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{
		http: httpClient,
		retrier: retry.NewRetrier(&retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ExponentialBackoff{BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2, JitterFactor: 0.1},
			RetryIf:     retry.DefaultRetryIf,
			Context:     context.Background(),
			Logger:      log,
		}),
		log: log,
	}
}

func (c *Client) IndexAccount(ctx context.Context, id int64, doc AccountDoc) error {
	return c.put(ctx, accountIndex, id, doc)
}

func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	return c.delete(ctx, accountIndex, id)
}

func (c *Client) IndexPost(ctx context.Context, id int64, doc PostDoc) error {
	return c.put(ctx, postIndex, id, doc)
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.delete(ctx, postIndex, id)
}

func (c *Client) put(ctx context.Context, index string, id int64, doc interface{}) error {
	url := fmt.Sprintf("/%s/_doc/%d", index, id)
	return c.retrier.WithContext(ctx).Do(func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(doc).Put(url)
		if err != nil {
			return errors.Wrap(errors.ErrorTypeNetwork, "indexing document", err)
		}
		return statusError(resp)
	})
}

func (c *Client) delete(ctx context.Context, index string, id int64) error {
	url := fmt.Sprintf("/%s/_doc/%d", index, id)
	return c.retrier.WithContext(ctx).Do(func() error {
		resp, err := c.http.R().SetContext(ctx).Delete(url)
		if err != nil {
			return errors.Wrap(errors.ErrorTypeNetwork, "deleting document", err)
		}
		// Deleting an unindexed document is a no-op, not a fault.
		if resp.StatusCode() == 404 {
			return nil
		}
		return statusError(resp)
	})
}

func statusError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	msg := fmt.Sprintf("index backend returned %d: %s", resp.StatusCode(), resp.String())
	if retry.IsRetryableStatus(resp.StatusCode()) {
		return errors.New(errors.ErrorTypeNetwork, msg)
	}
	return errors.New(errors.ErrorTypeUnknown, msg)
}

// NopSink is used when indexing is disabled.
type NopSink struct{}

func (NopSink) IndexAccount(context.Context, int64, AccountDoc) error { return nil }
func (NopSink) DeleteAccount(context.Context, int64) error            { return nil }
func (NopSink) IndexPost(context.Context, int64, PostDoc) error       { return nil }
func (NopSink) DeletePost(context.Context, int64) error               { return nil }

// AccountDocFor projects a stored account into its searchable form.
func AccountDocFor(a *models.Account) AccountDoc {
	return AccountDoc{
		Username:       a.Username,
		PostsCount:     a.PostsCount,
		FollowersCount: a.FollowersCount,
		FollowingCount: a.FollowingCount,
		Bio:            a.Bio,
		Website:        a.Website,
		JoinedAt:       a.CreatedAt,
	}
}

// PostDocFor projects a stored post into its searchable form.
func PostDocFor(p *models.Post, location string, tags []string) PostDoc {
	return PostDoc{
		AccountID:   p.AccountID,
		Code:        p.Code,
		Description: p.Description,
		Count:       p.Count,
		Kind:        p.Kind,
		Location:    location,
		Tags:        tags,
		PostedAt:    p.PostedAt,
	}
}
