package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	assert.NoError(t, id1.Validate())
	assert.NoError(t, id2.Validate())
	assert.NotEqual(t, id1, id2)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid UUID", input: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", wantErr: false},
		{name: "empty string", input: "", wantErr: true},
		{name: "not a UUID", input: "not-a-uuid", wantErr: true},
		{name: "truncated UUID", input: "6ba7b810-9dad-11d1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.input, id.String())
			}
		})
	}
}

func TestIDJSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIDMarshalJSON_Zero(t *testing.T) {
	var id ID
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestIDUnmarshalJSON_Invalid(t *testing.T) {
	var id ID
	err := json.Unmarshal([]byte(`"bogus"`), &id)
	assert.Error(t, err)
}

func TestIDIsZero(t *testing.T) {
	var zero ID
	assert.True(t, zero.IsZero())
	assert.False(t, NewID().IsZero())
}
