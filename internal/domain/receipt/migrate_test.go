package receipt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacySessionJSON = `{
	"fiscNumber": "37",
	"date": "2023-11-02T08:30:00Z",
	"isPending": true,
	"items": [
		{"barcode": "8691234567890", "quantity": 4, "isEdited": true,
		 "timestamp": "2023-11-02T08:31:00Z"},
		{"barcode": "4001234567895", "quantity": 1}
	]
}`

func TestDecodeSessionLegacyShape(t *testing.T) {
	s, err := DecodeSession(testCtx(), []byte(legacySessionJSON))
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "37", s.Fisno)
	assert.Equal(t, "2023-11-02", s.Tarih)
	assert.True(t, s.Pending)
	assert.True(t, s.IsNew)
	assert.Equal(t, NotTransferred, s.Aktarildi)

	// Operator attribution is backfilled from context.
	assert.Equal(t, "depo1", s.Username)
	assert.Equal(t, int64(42), s.UserID)

	require.Len(t, s.Details, 2)
	assert.Equal(t, "8691234567890", s.Details[0].Barcode)
	assert.Equal(t, int64(4), s.Details[0].Quantity)
	assert.True(t, s.Details[0].Edited)
	assert.True(t, s.Details[0].IsNew)
	assert.Equal(t, "4001234567895", s.Details[1].Barcode)

	// Totals are derived from the lines when the record carries none.
	assert.Equal(t, int64(5), s.TotalQuantity)
}

func TestDecodeSessionCurrentShapePassthrough(t *testing.T) {
	in := `{
		"okuma_id": 12, "fisno": "101", "tarih": "2024-06-05",
		"is_new": false, "is_aktarildi": "1", "toplam_adet": 2,
		"details": [{"barkod": "111222333", "miktar": 2, "is_new": false}]
	}`

	s, err := DecodeSession(testCtx(), []byte(in))
	require.NoError(t, err)

	assert.Equal(t, int64(12), s.OkumaID)
	assert.Equal(t, "101", s.Fisno)
	assert.False(t, s.IsNew, "explicit is_new false must survive")
	assert.Equal(t, Transferred, s.Aktarildi)
	require.Len(t, s.Details, 1)
	assert.False(t, s.Details[0].IsNew)
}

func TestDecodeSessionNullAndEmpty(t *testing.T) {
	for _, in := range []string{"", "null", "  null\n"} {
		s, err := DecodeSession(testCtx(), []byte(in))
		assert.NoError(t, err)
		assert.Nil(t, s)
	}
}

func TestDecodeSessionMalformed(t *testing.T) {
	_, err := DecodeSession(testCtx(), []byte(`{"fisno": `))
	assert.Error(t, err)
}

func TestMigrationIsIdempotent(t *testing.T) {
	ctx := testCtx()
	first, err := DecodeSession(ctx, []byte(legacySessionJSON))
	require.NoError(t, err)

	data, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := DecodeSession(ctx, data)
	require.NoError(t, err)

	again, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestDecodeSessions(t *testing.T) {
	in := `[` + legacySessionJSON + `,{"fisno":"102","tarih":"2024-06-05","details":[]}]`

	sessions, err := DecodeSessions(testCtx(), []byte(in))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "37", sessions[0].Fisno)
	assert.Equal(t, "102", sessions[1].Fisno)
}

func TestIsoDate(t *testing.T) {
	assert.Equal(t, "2023-11-02", isoDate("2023-11-02T08:30:00Z"))
	assert.Equal(t, "2023-11-02", isoDate("2023-11-02"))
	assert.Equal(t, "2023-11-02", isoDate(" 2023-11-02T08:30:00+03:00 "))
	// Unrecognized values pass through untouched.
	assert.Equal(t, "02.11.2023", isoDate("02.11.2023"))
}
