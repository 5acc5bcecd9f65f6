package stub

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_ServesStubs(t *testing.T) {
	store := NewStoreWith(
		Entry{
			Key: MustRequestKey("/method/text", MethodPost, Params{"some": 4545}),
			Response: ResponseStub{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "plain/text"},
				Body:       []byte("text"),
			},
		},
		Entry{
			Key:      MustRequestKey("https://api.example.com/ping?x=1", MethodGet, nil),
			Response: ResponseStub{StatusCode: 204},
		},
		Entry{
			Key: MustRequestKey("/fail", MethodPut, nil),
			Response: ResponseStub{
				StatusCode: 401,
				Error:      &Error{Domain: "auth", Code: 7, Message: "denied"},
			},
		},
	)
	client := &http.Client{Transport: NewTransport(store)}

	t.Run("path and JSON params", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, "https://api.example.com/method/text", strings.NewReader(`{"some": 4545.0}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "text", string(body))
		assert.Equal(t, "plain/text", resp.Header.Get("Content-Type"))
		assert.Equal(t, "200 OK", resp.Status)
	})

	t.Run("absolute url", func(t *testing.T) {
		resp, err := client.Get("https://api.example.com/ping?x=1")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("stub error", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, "https://api.example.com/fail", nil)
		_, err := client.Do(req)
		var stubErr *Error
		require.ErrorAs(t, err, &stubErr)
		assert.Equal(t, "auth", stubErr.Domain)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := client.Get("https://api.example.com/nothing")
		assert.True(t, errors.Is(err, ErrNoStub))
	})
}

func TestTransport_QueryParams(t *testing.T) {
	store := NewStoreWith(
		Entry{
			Key:      MustRequestKey("http://api.test/users", MethodGet, Params{"page": 2}),
			Response: ResponseStub{StatusCode: 200, Body: []byte("page two")},
		},
		Entry{
			Key: MustRequestKey("/search", MethodGet, Params{
				"q":      "go",
				"tags":   []any{"a", "b"},
				"filter": map[string]any{"active": true, "ids": []any{1, 2}},
			}),
			Response: ResponseStub{StatusCode: 200, Body: []byte("found")},
		},
		Entry{
			Key:      MustRequestKey("/codes", MethodDelete, Params{"code": "007"}),
			Response: ResponseStub{StatusCode: 204},
		},
		Entry{
			Key:      MustRequestKey("/form", MethodPost, Params{"name": "ann", "age": 30}),
			Response: ResponseStub{StatusCode: 201},
		},
	)
	client := &http.Client{Transport: NewTransport(store)}

	read := func(t *testing.T, resp *http.Response) string {
		t.Helper()
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}

	t.Run("scalar", func(t *testing.T) {
		resp, err := client.Get("http://api.test/users?page=2")
		require.NoError(t, err)
		assert.Equal(t, "page two", read(t, resp))
	})

	t.Run("arrays and mappings", func(t *testing.T) {
		query := url.Values{}
		query.Add("filter[active]", "true")
		query.Add("filter[ids][]", "1")
		query.Add("filter[ids][]", "2")
		query.Add("q", "go")
		query.Add("tags[]", "a")
		query.Add("tags[]", "b")
		resp, err := client.Get("https://elsewhere.test/search?" + query.Encode())
		require.NoError(t, err)
		assert.Equal(t, "found", read(t, resp))
	})

	t.Run("string values stay strings", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, "http://api.test/codes?code=007", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("form body", func(t *testing.T) {
		resp, err := client.PostForm("http://api.test/form", url.Values{"name": {"ann"}, "age": {"30"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("different value misses", func(t *testing.T) {
		_, err := client.Get("http://api.test/users?page=3")
		require.ErrorIs(t, err, ErrNoStub)
	})
}

func TestDecodeQueryParams(t *testing.T) {
	values, err := url.ParseQuery("a[]=1&a[]=x&d[k]=&d[n][m]=null&plain=true&odd[=1")
	require.NoError(t, err)

	assert.Equal(t, Params{
		"a":     []any{int64(1), "x"},
		"d":     map[string]any{"k": "", "n": map[string]any{"m": nil}},
		"plain": true,
		"odd[":  int64(1),
	}, decodeQueryParams(values, true))

	assert.Equal(t, Params{
		"a":     []any{"1", "x"},
		"d":     map[string]any{"k": "", "n": map[string]any{"m": "null"}},
		"plain": "true",
		"odd[":  "1",
	}, decodeQueryParams(values, false))
}

func TestTransport_Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("real:"), b...))
	}))
	defer srv.Close()

	tr := NewTransport(NewStore())
	tr.Fallback = http.DefaultTransport
	client := &http.Client{Transport: tr}

	resp, err := client.Post(srv.URL+"/x", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `real:{"a":1}`, string(body))
}
