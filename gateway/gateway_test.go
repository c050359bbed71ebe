package gateway

import (
	"text2phenotype.com/notex/types"
	"context"
	"encoding/json"
	"errors"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type capturedRequest struct {
	Auth string
	Body map[string]interface{}
}

func newUpstream(t *testing.T, status int, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			captured.Auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.Body))
		}
		w.WriteHeader(status)
		if status/100 != 2 {
			_, _ = w.Write([]byte(content))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{"message": map[string]interface{}{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewFromConfig(context.Background(), Config{
		OpenAIAPIKey:       "test-key",
		OpenAIBaseURL:      baseURL + "/v1",
		CallTimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return client
}

func TestTemperature(t *testing.T) {
	for _, model := range []string{"o1", "o1-mini", "o1-preview", "o3-mini", "O3-MINI", "gpt-5"} {
		require.Nil(t, Temperature(model), model)
	}
	for _, model := range []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gemini-1.5-pro"} {
		temp := Temperature(model)
		require.NotNil(t, temp, model)
		require.Equal(t, 0.1, *temp)
	}
}

func TestDecode(t *testing.T) {
	obj, err := Decode(`{"medications": [{"name": "Lisinopril"}]}`)
	require.NoError(t, err)
	require.Contains(t, obj, "medications")

	_, err = Decode(`[1, 2]`)
	require.ErrorIs(t, err, types.ErrNotJSONObject)
	_, err = Decode(`"text"`)
	require.ErrorIs(t, err, types.ErrNotJSONObject)
	_, err = Decode(`{"broken": `)
	require.Error(t, err)
}

func TestOpenAICallParameters(t *testing.T) {
	var captured capturedRequest
	srv := newUpstream(t, http.StatusOK, `{"cui": "C0065374"}`, &captured)
	client := newTestClient(t, srv.URL)

	obj, err := client.Call(context.Background(), "gpt-4o", "system text", "user text")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"cui": "C0065374"}, obj)

	require.Equal(t, "Bearer test-key", captured.Auth)
	require.Equal(t, "gpt-4o", captured.Body["model"])
	require.Equal(t, 0.1, captured.Body["temperature"])
	require.Equal(t, map[string]interface{}{"type": "json_object"}, captured.Body["response_format"])
	require.Equal(t, []interface{}{
		map[string]interface{}{"role": "system", "content": "system text"},
		map[string]interface{}{"role": "user", "content": "user text"},
	}, captured.Body["messages"])
}

func TestOpenAIReasoningModelOmitsTemperature(t *testing.T) {
	var captured capturedRequest
	srv := newUpstream(t, http.StatusOK, `{}`, &captured)
	client := newTestClient(t, srv.URL)

	_, err := client.Call(context.Background(), "o1-mini", "s", "u")
	require.NoError(t, err)
	require.NotContains(t, captured.Body, "temperature")
	require.Contains(t, captured.Body, "response_format")
}

func TestCallFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		content string
	}{
		{"non-2xx", http.StatusInternalServerError, "upstream exploded"},
		{"rate limited", http.StatusTooManyRequests, "slow down"},
		{"not json", http.StatusOK, "I am not JSON"},
		{"json array", http.StatusOK, `[{"name": "x"}]`},
		{"empty content", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newUpstream(t, tc.status, tc.content, nil)
			client := newTestClient(t, srv.URL)
			_, err := client.Call(context.Background(), "gpt-4o", "s", "u")
			var callErr *types.ModelCallError
			require.True(t, errors.As(err, &callErr), "got %v", err)
			require.Equal(t, "gpt-4o", callErr.Model)
		})
	}
}

func TestCallUpstreamErrorCarriesStatus(t *testing.T) {
	srv := newUpstream(t, http.StatusBadGateway, "bad gateway", nil)
	client := newTestClient(t, srv.URL)
	_, err := client.Call(context.Background(), "gpt-4o", "s", "u")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusBadGateway, upstream.Status)
	require.Equal(t, "bad gateway", upstream.Message)
}

func TestCallTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)
	client.timeout = 50 * time.Millisecond

	_, err := client.Call(context.Background(), "gpt-4o", "s", "u")
	var callErr *types.ModelCallError
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewFromConfigRequiresCredential(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{})
	require.True(t, types.IsConfigurationError(err))
}

func TestCheckModel(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	require.NoError(t, client.CheckModel("gpt-4o"))
	require.True(t, types.IsConfigurationError(client.CheckModel("gemini-2.0-flash")))
	require.True(t, types.IsConfigurationError(client.CheckModel("  ")))

	_, err := client.Call(context.Background(), "gemini-2.0-flash", "s", "u")
	var callErr *types.ModelCallError
	require.True(t, errors.As(err, &callErr))
}

func TestFuncAdapter(t *testing.T) {
	var g Gateway = Func(func(ctx context.Context, model, system, user string) (map[string]interface{}, error) {
		return map[string]interface{}{"model": model}, nil
	})
	obj, err := g.Call(context.Background(), "stub", "", "")
	require.NoError(t, err)
	require.Equal(t, "stub", obj["model"])
}
