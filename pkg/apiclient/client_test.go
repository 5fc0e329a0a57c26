package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/middleware/requestid"
)

type slot struct {
	Label string `json:"label"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, observer Observer) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{BaseURL: srv.URL + "/api/v1/", Observer: observer})
	require.NoError(t, err)
	return client
}

func TestDoDecodesEnvelopeAndForwardsHeaders(t *testing.T) {
	var observed []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/classes/10%2FA/sections", r.URL.EscapedPath())
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get(requestid.Header))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []slot{{Label: "P1"}}})
	}, func(op, method string, status int, d time.Duration) {
		observed = append(observed, op)
		assert.Equal(t, http.StatusOK, status)
	})

	ctx := requestid.WithContext(WithToken(context.Background(), "tok"), "req-1")
	var out []slot
	err := client.Get(ctx, "list_sections", "classes/"+url.PathEscape("10/A")+"/sections", url.Values{"year": {"2024"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, []slot{{Label: "P1"}}, out)
	assert.Equal(t, []string{"list_sections"}, observed)
}

func TestDoDecodesBarePayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "x", body["classId"])
		_, _ = w.Write([]byte(`[{"label":"P2"}]`))
	}, nil)

	var out []slot
	require.NoError(t, client.Post(context.Background(), "generate", "/timetables/time-slots", map[string]string{"classId": "x"}, &out))
	assert.Equal(t, "P2", out[0].Label)
}

func TestDoMapsStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   *appErrors.Error
		msg    string
	}{
		{http.StatusBadRequest, appErrors.ErrValidation, "bad input"},
		{http.StatusUnprocessableEntity, appErrors.ErrValidation, "bad input"},
		{http.StatusUnauthorized, appErrors.ErrUnauthorized, "bad input"},
		{http.StatusForbidden, appErrors.ErrForbidden, "bad input"},
		{http.StatusNotFound, appErrors.ErrNotFound, "bad input"},
		{http.StatusConflict, appErrors.ErrConflict, "bad input"},
		{http.StatusInternalServerError, appErrors.ErrUpstreamUnavailable, appErrors.ErrUpstreamUnavailable.Message},
		{http.StatusServiceUnavailable, appErrors.ErrUpstreamUnavailable, appErrors.ErrUpstreamUnavailable.Message},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"code":"X","message":"bad input"}}`))
			}, nil)

			err := client.Get(context.Background(), "op", "/anything", nil, nil)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.want.Code, appErr.Code)
			assert.Equal(t, tc.want.Status, appErr.Status)
			assert.Equal(t, tc.msg, appErr.Message)
		})
	}
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	var status = -1
	client, err := New(Config{BaseURL: srv.URL, Observer: func(_, _ string, s int, _ time.Duration) { status = s }})
	require.NoError(t, err)

	err = client.Get(context.Background(), "op", "/classes", nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUpstreamUnavailable))
	assert.Equal(t, 0, status)
}

func TestDoHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Get(ctx, "op", "/slow", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Config{BaseURL: "/api"})
	assert.Error(t, err)
	_, err = New(Config{})
	assert.Error(t, err)
}
