package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type impactRequest struct {
	Changed []string `json:"changed"`
	Files   []string `json:"files"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    impactRequest
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"changed":["core"],"files":["README.md"]}`,
			want: impactRequest{Changed: []string{"core"}, Files: []string{"README.md"}},
		},
		{
			name: "empty body",
			body: "",
		},
		{
			name:    "malformed",
			body:    `{"changed":`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			body:    `{"packages":["core"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var got impactRequest
			err := ParseJSON(req, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	w := httptest.NewRecorder()

	var got impactRequest
	assert.False(t, ParseJSONOrError(w, req, &got))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/packages/core", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "core"})

	name, err := ParsePathString(req, "name")
	require.NoError(t, err)
	assert.Equal(t, "core", name)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)

	w := httptest.NewRecorder()
	_, ok := ParsePathStringOrError(w, req, "missing")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?focus=core", nil)
	assert.Equal(t, "core", ParseQueryString(req, "focus", ""))
	assert.Equal(t, "dot", ParseQueryString(req, "format", "dot"))
}

func TestParseQueryStrings(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?changed=core&changed=ui,web&changed=&changed=%20cli%20", nil)
	assert.Equal(t, []string{"core", "ui", "web", "cli"}, ParseQueryStrings(req, "changed"))
	assert.Empty(t, ParseQueryStrings(req, "absent"))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?cached=false&bad=maybe", nil)

	val, err := ParseQueryBool(req, "cached", true)
	require.NoError(t, err)
	assert.False(t, val)

	val, err = ParseQueryBool(req, "absent", true)
	require.NoError(t, err)
	assert.True(t, val)

	_, err = ParseQueryBool(req, "bad", true)
	assert.Error(t, err)
}
