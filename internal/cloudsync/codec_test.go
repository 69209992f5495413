package cloudsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFlexibleShapes(t *testing.T) {
	type payload struct {
		Credits int `json:"credits"`
	}

	native := []byte(`{"credits":42}`)
	stringEncoded := []byte(`"{\"credits\":42}"`)
	doubleEncoded := []byte(`"\"{\\\"credits\\\":42}\""`)

	for _, raw := range [][]byte{native, stringEncoded, doubleEncoded} {
		var p payload
		require.True(t, decodeFlexible(raw, &p), "raw=%s", raw)
		assert.Equal(t, 42, p.Credits)
	}
}

func TestDecodeFlexibleRejectsGarbage(t *testing.T) {
	var v map[string]any
	assert.False(t, decodeFlexible(nil, &v))
	assert.False(t, decodeFlexible([]byte("null"), &v))
	assert.False(t, decodeFlexible([]byte("not json"), &v))
	assert.False(t, decodeFlexible([]byte(`"still not json"`), &v))
}

func TestDecodeAnalyticsDefaultsAndClamp(t *testing.T) {
	a := decodeAnalytics(nil)
	assert.NotNil(t, a.ModelUsage)
	assert.NotNil(t, a.History)

	long := UserAnalytics{ModelUsage: map[string]int{}, History: make([]int, 40)}
	for i := range long.History {
		long.History[i] = i
	}
	got := decodeAnalytics([]byte(encodeJSON(long)))
	require.Len(t, got.History, HistorySize)
	assert.Equal(t, 40-HistorySize, got.History[0])
	assert.Equal(t, 39, got.History[HistorySize-1])
}

func TestDecodeEnterpriseStringEncoded(t *testing.T) {
	blob := `{"config":{"teamName":"Acme","allowedModels":["nexus-0"],"codingCapability":"half","totalPrice":85,"securityLevel":"high"},"members":["a@acme.com"]}`
	wrapped := encodeJSON(blob)

	ent := decodeEnterprise([]byte(wrapped))
	require.NotNil(t, ent.Config)
	assert.Equal(t, "Acme", ent.Config.TeamName)
	assert.Equal(t, []string{"a@acme.com"}, ent.Members)
}

func TestDecodeSessionsInvalidFallsBackEmpty(t *testing.T) {
	got := decodeSessions([]byte("{broken"))
	require.NotNil(t, got)
	assert.Empty(t, got)
}
