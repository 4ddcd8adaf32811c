package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	rows, many, err := DecodeJSON([]byte(`{"uuid":"p1","admission_timestamp":1760000000,"weight":71.5,"location_uuid":null}`))
	require.NoError(t, err)
	assert.False(t, many)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1760000000), rows[0]["admission_timestamp"])
	assert.Equal(t, 71.5, rows[0]["weight"])
	assert.Nil(t, rows[0]["location_uuid"])
	assert.Contains(t, rows[0], "location_uuid")

	rows, many, err = DecodeJSON([]byte(` [{"a":1},{"a":2}] `))
	require.NoError(t, err)
	assert.True(t, many)
	assert.Equal(t, []Values{{"a": int64(1)}, {"a": int64(2)}}, rows)

	rows, _, err = DecodeJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, rows)

	_, _, err = DecodeJSON([]byte(`"text"`))
	assert.ErrorIs(t, err, ErrInvalidJSONRows)

	_, _, err = DecodeJSON([]byte(`[{"a":}]`))
	assert.Error(t, err)
}
