package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/cache"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	EndpointMessages        = "messages"
	EndpointChecker         = "checker"
	EndpointBlockUser       = "block_user"
	EndpointStatistics      = "statistics"
	EndpointDanmuStatistics = "danmu_statistics"
)

// Recorder receives upstream request statistics
type Recorder interface {
	RecordAPIRequest(endpoint, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAPIRequest(string, string, time.Duration) {}

type enveloped interface {
	Header() models.Envelope
}

// Client reads the danmu API through the query cache
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.QueryCache
	recorder   Recorder
	logger     *logrus.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.APIConfig, queryCache *cache.QueryCache, recorder Recorder, logger *logrus.Logger) *Client {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      queryCache,
		recorder:   recorder,
		logger:     logger,
	}
}

// Request is an upstream call bound to its cache key
type Request[T any] struct {
	Key   cache.Key
	Fetch cache.FetchFunc
}

// Result converts a resolved cache entry back to the response type
func Result[T any](e cache.Entry) (*T, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	rsp, ok := e.Data.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", e.Data)
	}
	return rsp, nil
}

func newRequest[T any](c *Client, endpoint, path string, params url.Values) Request[T] {
	return Request[T]{
		Key: cache.NewKey(path, params),
		Fetch: func(ctx context.Context) (any, error) {
			rsp := new(T)
			if err := c.get(ctx, endpoint, path, params, rsp); err != nil {
				return nil, err
			}
			return rsp, nil
		},
	}
}

func do[T any](ctx context.Context, c *Client, req Request[T]) (*T, error) {
	data, err := c.cache.Fetch(ctx, req.Key, req.Fetch)
	if err != nil {
		return nil, err
	}
	return data.(*T), nil
}

// MessagesRequest builds GET /api/{room_id}
func (c *Client) MessagesRequest(q models.MessageQuery) Request[models.MessagePage] {
	params := url.Values{}
	if q.Message != "" {
		params.Set("message", q.Message)
	}
	if q.MessageType != "" {
		params.Set("message_type", string(q.MessageType))
	}
	params.Set("timestamp", strconv.FormatInt(q.Timestamp, 10))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	path := "/api/" + strconv.FormatInt(q.RoomID, 10)
	return newRequest[models.MessagePage](c, EndpointMessages, path, params)
}

// Messages returns one page of a room feed
func (c *Client) Messages(ctx context.Context, q models.MessageQuery) (*models.MessagePage, error) {
	return do(ctx, c, c.MessagesRequest(q))
}

// CheckerRequest builds GET /api/checker
func (c *Client) CheckerRequest(uid uint64, timestamp int64) Request[models.CheckerResult] {
	params := url.Values{}
	params.Set("uid", strconv.FormatUint(uid, 10))
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	return newRequest[models.CheckerResult](c, EndpointChecker, "/api/checker", params)
}

// Checker returns the messages one user sent across all rooms
func (c *Client) Checker(ctx context.Context, uid uint64, timestamp int64) (*models.CheckerResult, error) {
	return do(ctx, c, c.CheckerRequest(uid, timestamp))
}

// BlockUsersRequest builds GET /api/block_user
func (c *Client) BlockUsersRequest(limit, offset int) Request[models.BlockUserPage] {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return newRequest[models.BlockUserPage](c, EndpointBlockUser, "/api/block_user", params)
}

// BlockUsers returns one page of the ban list
func (c *Client) BlockUsers(ctx context.Context, limit, offset int) (*models.BlockUserPage, error) {
	return do(ctx, c, c.BlockUsersRequest(limit, offset))
}

// StatisticsRequest builds GET /api/statistics
func (c *Client) StatisticsRequest(roomID, timestamp int64) Request[models.StatisticsResponse] {
	params := url.Values{}
	params.Set("room_id", strconv.FormatInt(roomID, 10))
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	return newRequest[models.StatisticsResponse](c, EndpointStatistics, "/api/statistics", params)
}

// Statistics returns the aggregates of the day of timestamp and the day before
func (c *Client) Statistics(ctx context.Context, roomID, timestamp int64) (*models.StatisticsResponse, error) {
	return do(ctx, c, c.StatisticsRequest(roomID, timestamp))
}

// DanmuStatisticsRequest builds GET /api/danmu_statistics
func (c *Client) DanmuStatisticsRequest(roomID, start, end int64) Request[models.DanmuStatistics] {
	params := url.Values{}
	params.Set("room_id", strconv.FormatInt(roomID, 10))
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	return newRequest[models.DanmuStatistics](c, EndpointDanmuStatistics, "/api/danmu_statistics", params)
}

// DanmuStatistics returns the daily aggregates of a room between start and end
func (c *Client) DanmuStatistics(ctx context.Context, roomID, start, end int64) (*models.DanmuStatistics, error) {
	return do(ctx, c, c.DanmuStatisticsRequest(roomID, start, end))
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, rsp any) error {
	start := time.Now()
	err := c.call(ctx, endpoint, path, params, rsp)
	duration := time.Since(start)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNetwork):
		status = "network_error"
	case IsCodeError(err):
		status = "code_error"
	default:
		status = "error"
	}
	c.recorder.RecordAPIRequest(endpoint, status, duration)

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"path":     path,
		"status":   status,
		"duration": duration,
	}).Debug("Upstream request finished")
	return err
}

func (c *Client) call(ctx context.Context, endpoint, path string, params url.Values, rsp any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	httpRsp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer httpRsp.Body.Close()

	if httpRsp.StatusCode < 200 || httpRsp.StatusCode > 299 {
		return fmt.Errorf("%w: status code %d", ErrNetwork, httpRsp.StatusCode)
	}
	rspBytes, err := io.ReadAll(httpRsp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body fail: %v", ErrNetwork, err)
	}
	if err = jsoniter.Unmarshal(rspBytes, rsp); err != nil {
		return fmt.Errorf("unmarshal %s response fail: %w", endpoint, err)
	}

	if env, ok := rsp.(enveloped); ok {
		if h := env.Header(); h.Code != 0 {
			return &CodeError{Endpoint: endpoint, Code: h.Code, Msg: h.Message}
		}
	}
	return nil
}
