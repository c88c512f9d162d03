package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"content": "hello", "quality_score": 0.9}`)))
	assert.Equal(t, "hello", m["content"])
	assert.Equal(t, 0.9, m["quality_score"])

	// Some drivers hand back strings instead of byte slices.
	var fromString JSONMap
	require.NoError(t, fromString.Scan(`{"qa_passed": true}`))
	assert.Equal(t, true, fromString["qa_passed"])

	var fromNil JSONMap
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	var bad JSONMap
	assert.Error(t, bad.Scan(42))
}

func TestJSONMapValue(t *testing.T) {
	var nilMap JSONMap
	v, err := nilMap.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	m := JSONMap{"provider": "local"}
	v, err = m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider": "local"}`, string(v.([]byte)))
}
