package service

import (
	"encoding/json"
	"testing"

	"avrocompat/internal/schema/types"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDecodeCheckRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    CheckRequest
		wantErr bool
	}{
		{
			name: "Valid",
			body: `{"id": "x", "writer": "\"int\"", "reader": "\"long\"", "mutual": true}`,
			want: CheckRequest{ID: "x", Writer: `"int"`, Reader: `"long"`, Mutual: true},
		},
		{
			name:    "Not JSON",
			body:    `{"writer":`,
			wantErr: true,
		},
		{
			name:    "Missing Reader",
			body:    `{"writer": "\"int\""}`,
			wantErr: true,
		},
		{
			name:    "Empty Writer",
			body:    `{"writer": "", "reader": "\"int\""}`,
			wantErr: true,
		},
		{
			name:    "Schema As Object",
			body:    `{"writer": {"type": "int"}, "reader": "\"int\""}`,
			wantErr: true,
		},
		{
			name:    "Unknown Property",
			body:    `{"writer": "\"int\"", "reader": "\"int\"", "level": "FULL"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCheckRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, types.MutualRead, got.CheckType())
		})
	}
}

func TestDecodeBatchRequest(t *testing.T) {
	req, err := DecodeBatchRequest([]byte(`{"checks": [
		{"id": "a", "writer": "\"int\"", "reader": "\"long\""},
		{"id": "b", "writer": "\"long\"", "reader": "\"int\"", "short_circuit": true}
	]}`))
	require.NoError(t, err)
	require.Len(t, req.Checks, 2)
	assert.True(t, req.Checks[1].ShortCircuit)

	_, err = DecodeBatchRequest([]byte(`{"checks": []}`))
	assert.Error(t, err)

	_, err = DecodeBatchRequest([]byte(`{"checks": [{"writer": "\"int\""}]}`))
	assert.Error(t, err)
}

func TestDecodeLevelRequest(t *testing.T) {
	req, err := DecodeLevelRequest([]byte(`{"schema": "\"int\"", "previous": ["\"int\""], "level": "full"}`))
	require.NoError(t, err)
	assert.Equal(t, "full", req.Level)
	assert.Equal(t, []string{`"int"`}, req.Previous)

	_, err = DecodeLevelRequest([]byte(`{"schema": "\"int\""}`))
	assert.Error(t, err)
}

func TestCheckResponse_Encoding(t *testing.T) {
	resp, err := NewService(1, 0).Check(t.Context(), CheckRequest{ID: "enc", Writer: `"long"`, Reader: `"int"`})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "enc",
		"check": "CAN_BE_READ_BY",
		"compatible": false,
		"findings": [{
			"category": "TYPE_MISMATCH",
			"location": "/",
			"path": [],
			"writer": "\"long\"",
			"reader": "\"int\"",
			"message": "reader type int cannot decode writer type long"
		}]
	}`, string(data))

	var report CheckReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, resp.Report(), report)

	out, err := yaml.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "compatible: false")
	assert.Contains(t, string(out), "category: TYPE_MISMATCH")
}
