package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/issuetracker-lite/internal/client"
	"github.com/k1networth/issuetracker-lite/internal/issue"
	"github.com/k1networth/issuetracker-lite/internal/shared/httpx"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := &issue.Service{Store: issue.NewInMemoryStore(), Log: log}
	srv := httptest.NewServer(httpx.NewRouter(log, httpx.RouterConfig{}, &issue.Handler{Log: log, Service: svc}))
	t.Cleanup(srv.Close)
	return client.New(srv.URL+"/", 0)
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, "my project", issue.CreateRequest{
		Title:     "Title",
		Text:      "text",
		CreatedBy: "Joe",
	})
	require.NoError(t, err)
	assert.Equal(t, "my project", created.Project)
	assert.True(t, created.Open)

	conf, err := c.SetOpen(ctx, "my project", created.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, issue.ResultUpdated, conf.Result)

	list, err := c.List(ctx, "my project", url.Values{"open": {"false"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.False(t, list[0].Open)

	status := "Triaged"
	_, err = c.Update(ctx, "my project", issue.UpdateRequest{ID: created.ID.String(), StatusText: &status})
	require.NoError(t, err)

	conf, err = c.Delete(ctx, "my project", created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, issue.ResultDeleted, conf.Result)

	list, err = c.List(ctx, "my project", nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClientDecodesAPIError(t *testing.T) {
	c := newClient(t)
	ctx := requestid.With(context.Background(), "cli-req-1")

	_, err := c.Create(ctx, "apitest", issue.CreateRequest{})

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Equal(t, "cli-req-1", apiErr.RequestID)
	assert.GreaterOrEqual(t, len(apiErr.Details), 3)

	_, err = c.Delete(ctx, "apitest", "5f665eb46e296f6b9b6a504d")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "5f665eb46e296f6b9b6a504d", apiErr.ID)
}

func TestClientNonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := client.New(srv.URL, 0).List(context.Background(), "apitest", nil)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "http_error", apiErr.Code)
	assert.Equal(t, "bad gateway", apiErr.Message)
}
