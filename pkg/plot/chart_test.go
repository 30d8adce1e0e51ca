package plot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/logger/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func point(hour int, price string) kagi.Point {
	return kagi.Point{Time: start.Add(time.Duration(hour) * time.Hour), Price: decimal.RequireFromString(price)}
}

func newTestChart(t *testing.T, options ...Option) *Chart {
	t.Helper()
	log, err := zerolog.New("error", time.RFC3339, false, true)
	require.NoError(t, err)

	chart, err := NewChart(zerolog.NewAdapter(log), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chart.Shutdown(context.Background()) })
	return chart
}

func drawReversal(chart *Chart) {
	events := []kagi.Segment{
		{Kind: kagi.KindExtend, From: point(0, "100"), To: point(1, "101.2"), Style: kagi.StyleYang},
		{Kind: kagi.KindBend, From: point(1, "101.2"), To: point(2, "101.2"), Style: kagi.StyleYang},
		{Kind: kagi.KindExtend, From: point(2, "101.2"), To: point(2, "100"), Style: kagi.StyleYang},
		{Kind: kagi.KindExtend, From: point(2, "100"), To: point(2, "99.9"), Style: kagi.StyleYin},
		{Kind: kagi.KindStyleChange, From: point(2, "100"), To: point(2, "100"), Style: kagi.StyleYin},
	}
	for _, segment := range events {
		chart.OnEvent(feed.Event{Pair: "BTCUSDT", Segment: segment})
	}
}

func TestChart_Render(t *testing.T) {
	chart := newTestChart(t)
	drawReversal(chart)

	data := chart.data("BTCUSDT")
	require.Len(t, data.Shapes, 4)
	require.Len(t, data.Markers, 1)

	require.Equal(t, DefaultTheme.YangColor, data.Shapes[0].Color)
	require.Equal(t, DefaultTheme.YangWidth, data.Shapes[0].Width)
	require.Equal(t, 101.2, data.Shapes[0].EndY)
	require.Equal(t, "yin", data.Shapes[3].Name)
	require.Equal(t, DefaultTheme.YinWidth, data.Shapes[3].Width)

	require.Equal(t, kagi.StyleYin, data.Markers[0].Style)
	require.Equal(t, 100.0, data.Markers[0].Price)
	require.Equal(t, []string{"BTCUSDT"}, chart.Pairs())
}

func TestChart_MaxShapes(t *testing.T) {
	chart := newTestChart(t, WithMaxShapes(2))
	drawReversal(chart)

	data := chart.data("BTCUSDT")
	require.Len(t, data.Shapes, 2)
	require.Equal(t, 101.2, data.Shapes[0].StartY)
	require.Len(t, data.Markers, 1)
}

func TestChart_Handlers(t *testing.T) {
	chart := newTestChart(t)
	drawReversal(chart)

	server := httptest.NewServer(chart.Handler())
	defer server.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	t.Run("index redirects to first pair", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "/?pair=BTCUSDT", resp.Header.Get("Location"))
	})

	t.Run("index", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/?pair=BTCUSDT")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		require.Contains(t, string(body), `data-pair="BTCUSDT"`)
	})

	t.Run("data", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/data?pair=BTCUSDT")
		require.NoError(t, err)
		defer resp.Body.Close()

		var data pairData
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
		require.Equal(t, "BTC", data.Asset)
		require.Equal(t, "USDT", data.Quote)
		require.Len(t, data.Shapes, 4)
	})

	t.Run("data without pair", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/data")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("history", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/history?pair=BTCUSDT")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		require.Len(t, lines, 5)
		require.Equal(t, "start,end,from,to,style", lines[0])
		require.True(t, strings.HasSuffix(lines[4], ",100,99.9,yin"))
	})

	t.Run("script", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/assets/chart.js")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	})

	t.Run("health", func(t *testing.T) {
		resp, err := client.Get(server.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestChart_StaleHealth(t *testing.T) {
	chart := newTestChart(t, WithStaleAfter(time.Minute))

	recorder := httptest.NewRecorder()
	chart.handleHealth(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	drawReversal(chart)
	recorder = httptest.NewRecorder()
	chart.handleHealth(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestWebSocketHub(t *testing.T) {
	chart := newTestChart(t)
	server := httptest.NewServer(chart.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?pair=BTCUSDT"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial WebSocketMessage
	require.NoError(t, conn.ReadJSON(&initial))
	require.Equal(t, "initial", initial.Type)

	chart.OnEvent(feed.Event{Pair: "ETHUSDT", Segment: kagi.Segment{
		Kind: kagi.KindExtend, From: point(0, "10"), To: point(1, "11"), Style: kagi.StyleYang,
	}})
	chart.OnEvent(feed.Event{Pair: "BTCUSDT", Segment: kagi.Segment{
		Kind: kagi.KindExtend, From: point(0, "100"), To: point(1, "102"), Style: kagi.StyleYang,
	}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var message struct {
		Type    string `json:"type"`
		Pair    string `json:"pair"`
		Payload Shape  `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	require.Equal(t, "shape", message.Type)
	require.Equal(t, "BTCUSDT", message.Pair)
	require.Equal(t, 102.0, message.Payload.EndY)
}
