package httpapi

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cellite "github.com/SourceRegistry/cel-lite"
)

func TestWriteCelliteError_StructuredBody(t *testing.T) {
	t.Parallel()

	_, err := cellite.Compile("subject.role ==")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	writeCelliteError(rec, err, 400)

	assert.Equal(t, 400, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(cellite.KindParse), body["kind"])
	assert.NotEmpty(t, body["error"])
}

func TestWriteCelliteError_PlainError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeCelliteError(rec, errors.New("boom"), 500)

	assert.Equal(t, 500, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
