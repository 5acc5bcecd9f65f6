package stub

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestKey_Equality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  RequestKey
		equal bool
	}{
		{
			name:  "nil and empty params",
			a:     MustRequestKey("/a", MethodGet, nil),
			b:     MustRequestKey("/a", MethodGet, Params{}),
			equal: true,
		},
		{
			name:  "mapping order does not matter",
			a:     MustRequestKey("/a", MethodPost, Params{"x": 1, "y": map[string]any{"p": 1, "q": 2}}),
			b:     MustRequestKey("/a", MethodPost, Params{"y": map[string]any{"q": 2, "p": 1}, "x": 1}),
			equal: true,
		},
		{
			name:  "numbers compare numerically",
			a:     MustRequestKey("/a", MethodPost, Params{"n": 4545}),
			b:     MustRequestKey("/a", MethodPost, Params{"n": json.Number("4545.0")}),
			equal: true,
		},
		{
			name:  "typed collections",
			a:     MustRequestKey("/a", MethodPost, Params{"arr": []int{1, 2, 3}, "d": map[string]string{"1": "1"}}),
			b:     MustRequestKey("/a", MethodPost, Params{"arr": []any{1.0, 2.0, 3.0}, "d": map[string]any{"1": "1"}}),
			equal: true,
		},
		{
			name: "array order matters",
			a:    MustRequestKey("/a", MethodPost, Params{"arr": []any{1, 2}}),
			b:    MustRequestKey("/a", MethodPost, Params{"arr": []any{2, 1}}),
		},
		{
			name: "method differs",
			a:    MustRequestKey("/a", MethodGet, nil),
			b:    MustRequestKey("/a", MethodPost, nil),
		},
		{
			name: "url is compared verbatim",
			a:    MustRequestKey("/a", MethodGet, nil),
			b:    MustRequestKey("/a/", MethodGet, nil),
		},
		{
			name: "null differs from missing",
			a:    MustRequestKey("/a", MethodGet, Params{"n": nil}),
			b:    MustRequestKey("/a", MethodGet, nil),
		},
		{
			name: "string differs from number",
			a:    MustRequestKey("/a", MethodGet, Params{"n": "1"}),
			b:    MustRequestKey("/a", MethodGet, Params{"n": 1}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
			if tt.equal {
				assert.Equal(t, tt.a.Canonical(), tt.b.Canonical())
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestRequestKey_ZeroValueCanonicalizesLazily(t *testing.T) {
	built := MustRequestKey("/a", MethodPut, Params{"b": 1, "a": true})
	literal := RequestKey{URL: "/a", Method: MethodPut, Params: Params{"a": true, "b": 1.0}}

	assert.True(t, built.Equal(literal))
	assert.Equal(t, `PUT /a {"a":true,"b":1}`, literal.Canonical())
	assert.Equal(t, built.String(), literal.String())
}

func TestNewRequestKey_RejectsUnrepresentableParams(t *testing.T) {
	for name, params := range map[string]Params{
		"func":  {"f": func() {}},
		"chan":  {"c": make(chan int)},
		"nan":   {"n": math.NaN()},
		"inf":   {"deep": map[string]any{"x": []any{math.Inf(1)}}},
		"ptrto": {"p": &struct{}{}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewRequestKey("/a", MethodGet, params)
			assert.ErrorIs(t, err, ErrUnsupportedParam)
		})
	}

	assert.Panics(t, func() { MustRequestKey("/a", MethodGet, Params{"f": func() {}}) })
}

func TestNormalizeValue(t *testing.T) {
	type label string
	got, err := NormalizeValue(map[string]any{
		"int":    int32(7),
		"uint":   uint64(math.MaxUint64),
		"float":  2.5,
		"whole":  float32(3),
		"label":  label("x"),
		"ptr":    new(int),
		"nilptr": (*int)(nil),
		"nested": []map[string]int{{"a": 1}},
	})
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, int64(7), m["int"])
	assert.Equal(t, float64(math.MaxUint64), m["uint"])
	assert.Equal(t, 2.5, m["float"])
	assert.Equal(t, int64(3), m["whole"])
	assert.Equal(t, "x", m["label"])
	assert.Equal(t, int64(0), m["ptr"])
	assert.Nil(t, m["nilptr"])
	assert.Equal(t, []any{map[string]any{"a": int64(1)}}, m["nested"])

	_, err = NormalizeValue(map[int]string{1: "a"})
	assert.ErrorIs(t, err, ErrUnsupportedParam)

	assert.True(t, EqualValues([]int{1}, []any{json.Number("1")}))
	assert.False(t, EqualValues(func() {}, func() {}))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("PATCH")
	require.NoError(t, err)
	assert.Equal(t, MethodPatch, m)

	_, err = ParseMethod("patch")
	assert.Error(t, err)
	assert.Len(t, Methods, 9)
}

func TestResponseStub_CloneAndEqual(t *testing.T) {
	s := ResponseStub{
		StatusCode: 401,
		Headers:    map[string]string{"A": "1"},
		Body:       []byte("b"),
		Error:      &Error{Domain: "d", Code: 1, Message: "m"},
	}
	c := s.Clone()
	require.True(t, s.Equal(c))

	c.Headers["A"] = "2"
	c.Body[0] = 'x'
	c.Error.Code = 2
	assert.Equal(t, "1", s.Headers["A"])
	assert.Equal(t, "b", string(s.Body))
	assert.Equal(t, 1, s.Error.Code)
	assert.False(t, s.Equal(c))

	assert.False(t, ResponseStub{Body: []byte{}}.Equal(ResponseStub{}), "empty body differs from no body")
	assert.NotNil(t, ResponseStub{}.Clone().Headers)

	ok := NewResponseStub([]byte("x"))
	assert.Equal(t, 200, ok.StatusCode)
	assert.True(t, ok.HasBody())
	assert.Equal(t, "m (domain=d code=1)", s.Error.Error())
}

func TestRequestKey_TracksFieldChanges(t *testing.T) {
	one := MustRequestKey("/a", MethodGet, Params{"x": 1})
	two := MustRequestKey("/a", MethodGet, Params{"x": 2})

	k := MustRequestKey("/a", MethodGet, Params{"x": 1})
	k.Params = Params{"x": 2}
	assert.True(t, k.Equal(two))
	assert.False(t, k.Equal(one))
	assert.Equal(t, two.Hash(), k.Hash())

	inPlace := MustRequestKey("/a", MethodGet, Params{"x": 1})
	inPlace.Params["x"] = 3
	assert.Equal(t, `GET /a {"x":3}`, inPlace.Canonical())

	inPlace.URL = "/b"
	assert.Equal(t, `GET /b {"x":3}`, inPlace.Canonical())
}

func TestRequestKey_Clone(t *testing.T) {
	k := MustRequestKey("/a", MethodPost, Params{"n": 4545.0, "list": []int{1, 2}})
	c := k.Clone()
	assert.True(t, c.Equal(k))

	k.Params["n"] = 1
	assert.Equal(t, int64(4545), c.Params["n"])
	assert.Equal(t, []any{int64(1), int64(2)}, c.Params["list"])
}
