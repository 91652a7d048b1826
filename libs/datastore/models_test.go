package datastore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullStringJSONRoundTrip(t *testing.T) {
	var ns NullString
	require.NoError(t, json.Unmarshal([]byte(`"psp-123"`), &ns))
	assert.True(t, ns.Valid)
	assert.Equal(t, "psp-123", ns.String)

	b, err := json.Marshal(&ns)
	require.NoError(t, err)
	assert.Equal(t, `"psp-123"`, string(b))

	// a JSON null clears the value instead of storing the literal
	require.NoError(t, json.Unmarshal([]byte(`null`), &ns))
	assert.False(t, ns.Valid)

	b, err = json.Marshal(&ns)
	require.NoError(t, err)
	assert.Equal(t, `null`, string(b))
}

func TestMetadataScanValue(t *testing.T) {
	m := Metadata{"status": "ok"}
	v, err := m.Value()
	require.NoError(t, err)

	scanned := Metadata{}
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, "ok", scanned["status"])

	// nil is a null column, anything but bytes is a caller bug
	require.NoError(t, scanned.Scan(nil))
	assert.Error(t, scanned.Scan(42))
}
