package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_Decoded(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        string
		wantErr     bool
	}{
		{"no content type", "", []byte("plain"), "plain", false},
		{"no charset", "application/json", []byte(`{"a":1}`), `{"a":1}`, false},
		{"utf-8", "text/plain; charset=utf-8", []byte("café"), "café", false},
		{"latin1", "text/plain; charset=ISO-8859-1", []byte{'c', 'a', 'f', 0xe9}, "café", false},
		{"windows-1251", "text/plain; charset=windows-1251", []byte{0xcf, 0xf0, 0xe8}, "При", false},
		{"unknown charset", "text/plain; charset=klingon", []byte("raw"), "raw", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.contentType != "" {
				h.Set("Content-Type", tt.contentType)
			}
			got, err := (&Response{Header: h, Body: tt.body}).Decoded()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := (*Response)(nil).Decoded()
	require.NoError(t, err)
	assert.Empty(t, got)
}
