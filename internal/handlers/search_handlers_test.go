package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// erroringESTransport answers every request with the configured status.
type erroringESTransport struct {
	status int
}

func (t erroringESTransport) RoundTrip(*http.Request) (*http.Response, error) {
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: t.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil
}

func TestSearchHandlerBackendFailureIs503(t *testing.T) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://fake-es:9200"},
		Transport: erroringESTransport{status: http.StatusBadGateway},
	})
	require.NoError(t, err)
	h := NewSearchHandler(es, "products")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/search?q=mug", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = h.Search(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestSearchHandlerWithoutBackendIs503(t *testing.T) {
	h := NewSearchHandler(nil, "products")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/search?q=mug", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Search(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, he.Code)
}
