package stub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertStubsList(t *testing.T, entries []Entry) {
	t.Helper()
	require.Len(t, entries, 3)

	text := entries[0]
	assert.Equal(t, "/method/text", text.Key.URL)
	assert.Equal(t, MethodPost, text.Key.Method)
	assert.Equal(t, 200, text.Response.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "plain/text", "Cache-control": "no-cache"}, text.Response.Headers)
	assert.Equal(t, []byte("text"), text.Response.Body)
	assert.Nil(t, text.Response.Error)

	params := text.Key.Params
	assert.Equal(t, int64(4545), params["some"])
	assert.Equal(t, "string", params["keystring"])
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, params["array"])
	assert.Equal(t, map[string]any{"1": "1", "2": "2"}, params["dict"])
	assert.Equal(t, []any{map[string]any{"1": "1"}, map[string]any{"2": "2"}}, params["array_of_dict"])
	v, present := params["null"]
	assert.True(t, present)
	assert.Nil(t, v)

	notText := entries[1]
	assert.Equal(t, "/method/nottext", notText.Key.URL)
	assert.Equal(t, MethodGet, notText.Key.Method)
	assert.Equal(t, 401, notText.Response.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "application/json", "Cache-control": "no-cache"}, notText.Response.Headers)
	assert.Equal(t, `{"haha": value}`, string(notText.Response.Body))

	errEntry := entries[2]
	assert.Equal(t, "/method/errormethod", errEntry.Key.URL)
	assert.Equal(t, MethodPut, errEntry.Key.Method)
	assert.Equal(t, 401, errEntry.Response.StatusCode)
	assert.Equal(t, map[string]string{"Cache-control": "no-cache"}, errEntry.Response.Headers)
	assert.Nil(t, errEntry.Response.Body)
	require.NotNil(t, errEntry.Response.Error)
	assert.Equal(t, Error{Domain: "123123", Code: 123, Message: "Some error message"}, *errEntry.Response.Error)
}

func TestLoad_StubsList(t *testing.T) {
	entries, err := Load(filepath.Join("testdata", "StubsList.json"))
	require.NoError(t, err)
	assertStubsList(t, entries)
}

func TestLoad_YAMLMatchesJSON(t *testing.T) {
	fromYAML, err := Load(filepath.Join("testdata", "StubsList.yaml"))
	require.NoError(t, err)
	assertStubsList(t, fromYAML)

	fromJSON, err := Load(filepath.Join("testdata", "StubsList.json"))
	require.NoError(t, err)
	for i := range fromJSON {
		assert.True(t, fromJSON[i].Key.Equal(fromYAML[i].Key), "entry %d key", i)
		assert.True(t, fromJSON[i].Response.Equal(fromYAML[i].Response), "entry %d response", i)
	}
}

func TestLoad_IsRepeatable(t *testing.T) {
	path := filepath.Join("testdata", "StubsList.json")
	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoad_FileNotExists(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "StubsList1.json"),
		"directory": dir,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFileNotExists)
			assert.True(t, IsFileNotExists(err))
			assert.False(t, IsDecodingError(err))

			var fnf *FileNotExistsError
			require.ErrorAs(t, err, &fnf)
			assert.Equal(t, path, fnf.Path)
		})
	}
}

func TestLoad_WrongList(t *testing.T) {
	path := filepath.Join("testdata", "WrongList.json")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsDecodingError(err))
	assert.False(t, IsFileNotExists(err))

	var derr *DecodingError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, path, derr.Path)
	assert.Equal(t, "[1].responseStub.statusCode", derr.Field)
	assert.Contains(t, derr.Error(), path)
}

func TestParse_DecodingFailures(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		field  string
	}{
		{"empty", "  \n", FormatJSON, ""},
		{"syntax", `[{"url": "/a",}]`, FormatJSON, ""},
		{"not an array", `{"url": "/a"}`, FormatJSON, ""},
		{"trailing data", `[] []`, FormatJSON, ""},
		{"missing responseStub", `[{"url": "/a", "method": "GET"}]`, FormatJSON, "[0]"},
		{"unknown method", `[{"url": "/a", "method": "get", "responseStub": {"statusCode": 200}}]`, FormatJSON, "[0].method"},
		{"header not a string", `[{"url": "/a", "method": "GET", "responseStub": {"statusCode": 200, "headers": {"A": 1}}}]`, FormatJSON, "[0].responseStub.headers.A"},
		{"error missing code", `[{"url": "/a", "method": "GET", "responseStub": {"statusCode": 200, "error": {"domain": "d", "message": "m"}}}]`, FormatJSON, "[0].responseStub.error"},
		{"bad yaml", "- url: [unclosed", FormatYAML, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			var derr *DecodingError
			require.ErrorAs(t, err, &derr)
			assert.ErrorIs(t, err, ErrDecoding)
			assert.Equal(t, tt.field, derr.Field)
		})
	}
}

func TestParse_NullsMeanAbsent(t *testing.T) {
	entries, err := Parse([]byte(`[{"url": "/a", "method": "DELETE", "params": null,
		"responseStub": {"statusCode": 204, "headers": null, "body": null, "error": null}}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Key.Params)
	assert.NotNil(t, entries[0].Response.Headers)
	assert.False(t, entries[0].Response.HasBody())
	assert.Nil(t, entries[0].Response.Error)
}

func TestLoadGlob(t *testing.T) {
	entries, err := LoadGlob(filepath.Join("testdata", "**", "*.{json,yml}"))
	require.Error(t, err, "WrongList.json is matched and fails the load")
	assert.ErrorIs(t, err, ErrDecoding)
	assert.Nil(t, entries)

	entries, err = LoadGlob(filepath.Join("testdata", "nested", "**"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/health", entries[0].Key.URL)
	assert.Equal(t, "/users", entries[1].Key.URL)

	entries, err = LoadGlob(filepath.Join(t.TempDir(), "*.json"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEncode_RoundTrip(t *testing.T) {
	entries, err := Load(filepath.Join("testdata", "StubsList.json"))
	require.NoError(t, err)

	data, err := Encode(entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	again, err := Load(path)
	require.NoError(t, err)
	assertStubsList(t, again)
}

func TestEncodeAs_YAMLRoundTrip(t *testing.T) {
	entries, err := Load(filepath.Join("testdata", "StubsList.json"))
	require.NoError(t, err)

	data, err := EncodeAs(entries, FormatYAML)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	again, err := Load(path)
	require.NoError(t, err)
	assertStubsList(t, again)

	jsonData, err := EncodeAs(entries, FormatJSON)
	require.NoError(t, err)
	plain, err := Encode(entries)
	require.NoError(t, err)
	assert.Equal(t, plain, jsonData)
}

func TestPointerToField(t *testing.T) {
	assert.Equal(t, "", pointerToField(""))
	assert.Equal(t, "[1].responseStub.statusCode", pointerToField("/1/responseStub/statusCode"))
	assert.Equal(t, "[0].params.a/b", pointerToField("/0/params/a~1b"))
	assert.Equal(t, FormatYAML, FormatForPath("x.YML"))
	assert.Equal(t, FormatJSON, FormatForPath("x.txt"))
}
