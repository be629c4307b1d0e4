package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/models"
	"github.com/danmu-dashboard-go/internal/services/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		Server: config.ServerConfig{SessionTTL: time.Hour},
		API:    config.APIConfig{BaseURL: srv.URL, Timeout: time.Second},
		Cache:  config.CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 100},
	}
	qc := cache.NewQueryCache(cfg, nil, logger)
	return NewClient(&cfg.API, qc, nil, logger), &hits
}

func TestClient_MessagesQuery(t *testing.T) {
	cases := []struct {
		name     string
		query    models.MessageQuery
		expected string
	}{
		{
			name:     "defaults",
			query:    models.MessageQuery{RoomID: 22747736, MessageType: models.MessageTypeDanmu, Timestamp: 1700000000, Limit: 50},
			expected: "limit=50&message_type=danmu&offset=0&timestamp=1700000000",
		},
		{
			name: "search",
			query: models.MessageQuery{RoomID: 22747736, Message: "晚上好", MessageType: models.MessageTypeSuperChat,
				Timestamp: 1700000000, Limit: 50, Offset: 100},
			expected: "limit=50&message=%E6%99%9A%E4%B8%8A%E5%A5%BD&message_type=super_chat&offset=100&timestamp=1700000000",
		},
		{
			name:     "empty message type is omitted",
			query:    models.MessageQuery{RoomID: 1, Limit: 15},
			expected: "limit=15&offset=0&timestamp=0",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var gotPath, gotQuery string
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				fmt.Fprint(w, `{"code":0,"message":"","count":0,"data":[]}`)
			})

			_, err := client.Messages(context.Background(), c.query)
			require.NoError(t, err)
			assert.Equal(t, "/api/"+strconv.FormatInt(c.query.RoomID, 10), gotPath)
			assert.Equal(t, c.expected, gotQuery)
		})
	}
}

func TestClient_MessagesDecode(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"message":"","count":47,"data":[
			{"uid":1,"username":"a","message":"hi","message_type":"danmu","timestamp":1700000000},
			{"uid":2,"username":"b","message":"sc","message_type":"super_chat","timestamp":1700000001,"worth":30}
		]}`)
	})

	q := models.MessageQuery{RoomID: 1, MessageType: models.MessageTypeDanmu, Limit: 15}
	page, err := client.Messages(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 47, page.Count)
	require.Len(t, page.Data, 2)
	assert.Equal(t, float64(0), page.Data[0].Worth())
	assert.Equal(t, float64(30), page.Data[1].Worth())
	assert.True(t, page.Data[1].IsSuperChat())

	// identical parameters are served from the cache
	_, err = client.Messages(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	q.Offset = 15
	_, err = client.Messages(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestClient_NetworkError(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.BlockUsers(context.Background(), 15, 0)
	assert.ErrorIs(t, err, ErrNetwork)

	// no retry
	_, err = client.BlockUsers(context.Background(), 15, 0)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClient_CodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":-1,"message":"no data"}`)
	})

	_, err := client.Statistics(context.Background(), 1, 1700000000)
	var codeErr *CodeError
	require.True(t, errors.As(err, &codeErr))
	assert.Equal(t, -1, codeErr.Code)
	assert.Equal(t, EndpointStatistics, codeErr.Endpoint)
	assert.True(t, IsCodeError(err))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestClient_StatisticsAndChart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/statistics":
			assert.Equal(t, "7", r.URL.Query().Get("room_id"))
			fmt.Fprint(w, `{"code":0,"message":"","data":{
				"today":{"danmu_total":100,"danmu_people":10,"super_chat_total":2,"super_chat_worth":60},
				"yesterday":{"danmu_total":80,"danmu_people":0,"super_chat_total":4,"super_chat_worth":30}}}`)
		case "/api/danmu_statistics":
			assert.Equal(t, "100", r.URL.Query().Get("start"))
			assert.Equal(t, "200", r.URL.Query().Get("end"))
			fmt.Fprint(w, `{"code":0,"message":"","data":[{"timestamp":150,"danmu_total":5,"danmu_people":1,"super_chat_total":0,"super_chat_worth":0}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	stats, err := client.Statistics(context.Background(), 7, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), stats.Data.Today.DanmuTotal)
	assert.Equal(t, uint64(30), stats.Data.Yesterday.SuperChatWorth)

	chart, err := client.DanmuStatistics(context.Background(), 7, 100, 200)
	require.NoError(t, err)
	require.Len(t, chart.Data, 1)
	assert.Equal(t, int64(150), chart.Data[0].Timestamp)
}

func TestClient_Checker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checker", r.URL.Path)
		assert.Equal(t, "406986743", r.URL.Query().Get("uid"))
		fmt.Fprint(w, `{"code":0,"message":"","data":[{"uid":406986743,"username":"u","message":"m","message_type":"danmu","timestamp":2,"room_id":22747736}]}`)
	})

	res, err := client.Checker(context.Background(), 406986743, 1700000000)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(22747736), res.Data[0].RoomID)
	assert.Equal(t, "m", res.Data[0].Message.Message)
}

func TestResult(t *testing.T) {
	page := &models.BlockUserPage{Count: 3}
	got, err := Result[models.BlockUserPage](cache.Entry{Status: cache.StatusSuccess, Data: page})
	require.NoError(t, err)
	assert.Same(t, page, got)

	_, err = Result[models.BlockUserPage](cache.Entry{Status: cache.StatusError, Err: ErrNetwork})
	assert.ErrorIs(t, err, ErrNetwork)

	_, err = Result[models.BlockUserPage](cache.Entry{Status: cache.StatusSuccess, Data: "nope"})
	assert.Error(t, err)
}
