package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCorruptFallsBackToDefault(t *testing.T) {
	for _, raw := range []string{"", "{", "null", "[1,2]"} {
		r, err := Decode("654321", []byte(raw))
		assert.ErrorIs(t, err, ErrCorrupt, "input %q", raw)
		assert.Equal(t, Default("654321"), r)
	}
}

func TestDecodeLegacyWarnSeconds(t *testing.T) {
	raw := `{"id":"000001","state":"running","durationSec":1800,"warnSec":420,"startedAtMs":99}`
	r, err := Decode("000001", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Warn1Min)
	assert.Equal(t, int64(DefaultWarn2Min), r.Warn2Min)
	assert.Equal(t, StateRunning, r.State)
	assert.Equal(t, int64(99), r.StartedAtMs)
	assert.Equal(t, SchemaVersion, r.Schema)
}

func TestDecodeLegacyKeepsExplicitWarn1(t *testing.T) {
	raw := `{"warnSec":420,"warn1Min":3}`
	r, err := Decode("1", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Warn1Min)
}

func TestDecodeLegacyNullWarn1IsAbsent(t *testing.T) {
	r, err := Decode("1", []byte(`{"warnSec":420,"warn1Min":null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Warn1Min)

	r, err = Decode("1", []byte(`{"warnSec":null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultWarn1Min), r.Warn1Min)
}

func TestDecodeCurrentSchemaSkipsMigration(t *testing.T) {
	raw := `{"schema":2,"warnSec":420}`
	r, err := Decode("1", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultWarn1Min), r.Warn1Min)
}

func TestDecodePartialDocument(t *testing.T) {
	raw := `{"durationSec":"oops","message":"hello","stage":{"lastSeen":12},"colors":{"warn2":"ABCDEF"},"futureField":true}`
	r, err := Decode("1", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultDurationSec), r.DurationSec)
	assert.Equal(t, "hello", r.Message)
	assert.Equal(t, int64(12), r.Stage.LastSeen)
	assert.Equal(t, "#abcdef", r.Colors.Warn2)
	assert.Equal(t, DefaultColorNormal, r.Colors.Normal)
}

func TestDecodeForcesStorageID(t *testing.T) {
	r, err := Decode("111111", []byte(`{"id":"999999","state":"bogus"}`))
	require.NoError(t, err)
	assert.Equal(t, "111111", r.ID)
	assert.Equal(t, StateIdle, r.State)
}

func TestEncodeRoundTripKeepsAdminKey(t *testing.T) {
	r := Default("222222")
	r.AdminKey = "00112233445566778899aabbccddeeff"
	b, err := Encode(r)
	require.NoError(t, err)
	got, err := Decode("222222", b)
	require.NoError(t, err)
	assert.Equal(t, r.AdminKey, got.AdminKey)
}

func TestRedactOmitsAdminKey(t *testing.T) {
	r := Default("1")
	r.AdminKey = "secret"
	b, err := json.Marshal(r.Redact())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "adminKey")
	assert.Equal(t, "secret", r.AdminKey)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "123456", NormalizeID(" 12-34 56 "))
	assert.Equal(t, "", NormalizeID("../etc"))
}
