package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"avrocompat/internal/compat"
	"avrocompat/internal/schema"
	"avrocompat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func setupTestRouter() *gin.Engine {
	return SetupRouter(service.NewService(2, time.Second))
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doRequest(t, setupTestRouter(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentType, w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestCheckRoute(t *testing.T) {
	r := setupTestRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   int
		wantCompat bool
	}{
		{
			name:       "Compatible",
			body:       `{"writer": "\"int\"", "reader": "\"long\""}`,
			wantStatus: http.StatusOK,
			wantCompat: true,
		},
		{
			name:       "Incompatible",
			body:       `{"writer": "\"long\"", "reader": "\"int\""}`,
			wantStatus: http.StatusOK,
			wantCompat: false,
		},
		{
			name:       "Invalid JSON",
			body:       `{"writer":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   42201,
		},
		{
			name:       "Missing Field",
			body:       `{"writer": "\"int\""}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   42201,
		},
		{
			name:       "Invalid Schema",
			body:       `{"writer": "\"Missing\"", "reader": "\"int\""}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   42202,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/compatibility/check", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantCode != 0 {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.ErrorCode)
				assert.NotEmpty(t, resp.Message)
				return
			}

			var resp service.CheckReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCompat, resp.Compatible)
			assert.Equal(t, !tt.wantCompat, len(resp.Findings) > 0)
		})
	}
}

func TestCheckRoute_MutualReport(t *testing.T) {
	body := `{"id": "u", "mutual": true,
		"writer": "{\"type\": \"record\", \"name\": \"User\", \"fields\": [{\"name\": \"id\", \"type\": \"int\"}]}",
		"reader": "{\"type\": \"record\", \"name\": \"User\", \"fields\": [{\"name\": \"id\", \"type\": \"long\"}]}"}`
	w := doRequest(t, setupTestRouter(), http.MethodPost, "/compatibility/check", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp service.CheckReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u", resp.ID)
	assert.Equal(t, "MUTUAL_READ", string(resp.Check))
	assert.False(t, resp.Compatible)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "/id", resp.Findings[0].Location)
	assert.Equal(t, []compat.Step{{Kind: "field", Name: "id"}}, resp.Findings[0].Path)
}

func TestBatchRoute(t *testing.T) {
	body := `{"checks": [
		{"id": "a", "writer": "\"int\"", "reader": "\"double\""},
		{"id": "b", "writer": "\"string\"", "reader": "\"bytes\"", "mutual": true},
		{"id": "c", "writer": "\"double\"", "reader": "\"float\""}
	]}`
	w := doRequest(t, setupTestRouter(), http.MethodPost, "/compatibility/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []service.CheckReport `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.True(t, resp.Results[0].Compatible)
	assert.True(t, resp.Results[1].Compatible)
	assert.False(t, resp.Results[2].Compatible)

	w = doRequest(t, setupTestRouter(), http.MethodPost, "/compatibility/batch", `{"checks": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLevelRoute(t *testing.T) {
	v1 := schema.MustNewSchema(schema.NewRecord("User", []*schema.Field{
		schema.NewField("id", schema.Primitive(schema.Int)),
	})).String()
	v2 := schema.MustNewSchema(schema.NewRecord("User", []*schema.Field{
		schema.NewField("id", schema.Primitive(schema.Int)),
		schema.NewField("name", schema.Primitive(schema.String)),
	})).String()

	payload, err := json.Marshal(service.LevelRequest{Schema: v2, Previous: []string{v1}, Level: "BACKWARD"})
	require.NoError(t, err)

	w := doRequest(t, setupTestRouter(), http.MethodPost, "/compatibility/level", string(payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Level      string `json:"level"`
		Checked    int    `json:"checked"`
		Compatible bool   `json:"compatible"`
		Findings   []struct {
			Category string `json:"category"`
			Location string `json:"location"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BACKWARD", resp.Level)
	assert.Equal(t, 1, resp.Checked)
	assert.False(t, resp.Compatible)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "MISSING_DEFAULT_VALUE", resp.Findings[0].Category)
	assert.Equal(t, "/name", resp.Findings[0].Location)

	payload, err = json.Marshal(service.LevelRequest{Schema: v2, Previous: []string{v1}, Level: "SIDEWAYS"})
	require.NoError(t, err)
	w = doRequest(t, setupTestRouter(), http.MethodPost, "/compatibility/level", string(payload))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	w := doRequest(t, setupTestRouter(), http.MethodGet, "/subjects", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
