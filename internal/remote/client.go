// Package remote talks to the Salesforce REST API: object metadata for the
// describe cache and record create/update for the reconciler.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/internal/metrics"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultAPIVersion = "v59.0"
	DefaultObjectName = "Survey__c"
	DefaultLanguage   = "en_US"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 16 << 20

// Config holds the connection settings for one Salesforce org.
type Config struct {
	InstanceURL string
	AccessToken string
	APIVersion  string
	ObjectName  string
	Language    string
	Timeout     time.Duration
	MaxRetries  uint64
}

// Client implements types.MetadataClient and types.RecordClient.
type Client struct {
	cfg        Config
	http       *http.Client
	log        *zap.SugaredLogger
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The configured timeout is not
// applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.log = log.Named(logging.ComponentRemote)
	}
}

// WithBackOff sets the retry policy factory. Each request gets a fresh
// policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

// New creates a Client. InstanceURL and AccessToken are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.InstanceURL = strings.TrimRight(strings.TrimSpace(cfg.InstanceURL), "/")
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("%w: instance URL is required", types.ErrInvalidArgument)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", types.ErrInvalidArgument)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if !strings.HasPrefix(cfg.APIVersion, "v") {
		cfg.APIVersion = "v" + cfg.APIVersion
	}
	if cfg.ObjectName == "" {
		cfg.ObjectName = DefaultObjectName
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  zap.NewNop().Sugar(),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ObjectName returns the object records are pushed to.
func (c *Client) ObjectName() string { return c.cfg.ObjectName }

// dataPath returns a REST data API path for the configured version.
func (c *Client) dataPath(format string, args ...any) string {
	return "/services/data/" + c.cfg.APIVersion + fmt.Sprintf(format, args...)
}

// apiError is one entry of a Salesforce error response body.
type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// decodeError builds a RemoteError from an error response body. Salesforce
// answers with a list of {errorCode, message}; the first entry wins.
func decodeError(status int, body []byte) *types.RemoteError {
	re := &types.RemoteError{StatusCode: status}
	var errs []apiError
	if err := json.Unmarshal(body, &errs); err == nil && len(errs) > 0 {
		re.Code = strings.ToLower(errs[0].ErrorCode)
		re.Message = errs[0].Message
		return re
	}
	var single apiError
	if err := json.Unmarshal(body, &single); err == nil && single.ErrorCode != "" {
		re.Code = strings.ToLower(single.ErrorCode)
		re.Message = single.Message
		return re
	}
	re.Message = strings.TrimSpace(string(body))
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}

// do sends one request, retrying network failures and 5xx answers with the
// configured backoff. 4xx answers are returned at once. When out is non-nil
// a non-empty response body is decoded into it.
//
// Cancelling ctx stops further attempts but never aborts an attempt already
// on the wire; the request timeout still applies to it.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sendCtx := context.WithoutCancel(ctx)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	var status int
	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(sendCtx, method, c.cfg.InstanceURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ObserveRemoteRequest(op, 0)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &types.RemoteError{Message: op + " request failed", Err: err}
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		metrics.ObserveRemoteRequest(op, status)

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return &types.RemoteError{StatusCode: status, Message: "read response", Err: err}
		}
		switch {
		case status >= 500:
			return decodeError(status, data)
		case status >= 400:
			return backoff.Permanent(decodeError(status, data))
		}
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(&types.RemoteError{
					StatusCode: status,
					Message:    "decode " + op + " response",
					Err:        err,
				})
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		c.log.Warnw("retrying remote request", "op", op, "wait", wait, "error", err)
	})
	return status, err
}

var (
	_ types.MetadataClient = (*Client)(nil)
	_ types.RecordClient   = (*Client)(nil)
)
