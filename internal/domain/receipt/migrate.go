package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appctx "okuma/internal/core/context"
)

// Schema migration for persisted sessions.
//
// Early releases of the terminal persisted a flat layout
// (fiscNumber/date/items with barcode/quantity). Stored records carry no
// version tag, so the legacy shape is detected by the presence of its field
// names and upgraded on load. Normalize is idempotent: running it on an
// already-current record changes nothing.

type rawLine struct {
	Line

	IsNewSet *bool `json:"is_new"`

	// Legacy flat item fields.
	LegacyBarcode  string `json:"barcode"`
	LegacyQuantity int64  `json:"quantity"`
	LegacyEdited   bool   `json:"isEdited"`
}

type rawSession struct {
	Session

	IsNewSet *bool     `json:"is_new"`
	Details  []rawLine `json:"details"`

	// Legacy session fields.
	LegacyFisno   string    `json:"fiscNumber"`
	LegacyDate    string    `json:"date"`
	LegacyItems   []rawLine `json:"items"`
	LegacyPending bool      `json:"isPending"`
}

// DecodeSession deserializes one stored session, upgrading legacy layouts.
// A stored JSON null yields (nil, nil). Malformed data yields an error; the
// caller discards the storage entry and resets to empty.
func DecodeSession(ctx context.Context, data []byte) (*Session, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return upgrade(ctx, &raw), nil
}

// DecodeSessions deserializes a stored session list, upgrading each record.
func DecodeSessions(ctx context.Context, data []byte) ([]*Session, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var raws []rawSession
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(raws))
	for i := range raws {
		sessions = append(sessions, upgrade(ctx, &raws[i]))
	}
	return sessions, nil
}

// upgrade maps a decoded raw record onto the current schema.
func upgrade(ctx context.Context, raw *rawSession) *Session {
	s := raw.Session

	// Legacy field renames: fiscNumber→fisno, date→tarih, items→details.
	if s.Fisno == "" && raw.LegacyFisno != "" {
		s.Fisno = raw.LegacyFisno
	}
	if s.Tarih == "" && raw.LegacyDate != "" {
		s.Tarih = isoDate(raw.LegacyDate)
	}
	if raw.LegacyPending {
		s.Pending = true
	}

	rawLines := raw.Details
	if len(rawLines) == 0 && len(raw.LegacyItems) > 0 {
		rawLines = raw.LegacyItems
	}

	s.Details = make([]Line, 0, len(rawLines))
	for i := range rawLines {
		s.Details = append(s.Details, upgradeLine(&rawLines[i]))
	}

	if raw.IsNewSet != nil {
		s.IsNew = *raw.IsNewSet
	} else {
		s.IsNew = true
	}

	Normalize(ctx, &s)
	return &s
}

func upgradeLine(raw *rawLine) Line {
	line := raw.Line

	// barcode→barkod, quantity→miktar; timestamp and edited carry over.
	if line.Barcode == "" && raw.LegacyBarcode != "" {
		line.Barcode = raw.LegacyBarcode
	}
	if line.Quantity == 0 && raw.LegacyQuantity != 0 {
		line.Quantity = raw.LegacyQuantity
	}
	if raw.LegacyEdited {
		line.Edited = true
	}

	if raw.IsNewSet != nil {
		line.IsNew = *raw.IsNewSet
	} else {
		line.IsNew = true
	}

	return line
}

// Normalize backfills defaults on a session so it is always schema-complete.
// Applied on load, and again when a pending session is resumed. Idempotent.
func Normalize(ctx context.Context, s *Session) {
	if s == nil {
		return
	}

	if s.Username == "" {
		s.Username = appctx.GetUsername(ctx)
	}
	if s.UserID == 0 {
		s.UserID = appctx.GetUserID(ctx)
	}
	if s.Aktarildi == "" {
		s.Aktarildi = NotTransferred
	}
	if s.Tarih != "" {
		s.Tarih = isoDate(s.Tarih)
	}

	if s.TotalQuantity == 0 {
		for _, line := range s.Details {
			if !line.Deleted {
				s.TotalQuantity += line.Quantity
			}
		}
	}
}

// isoDate reduces any stored date representation to YYYY-MM-DD. Legacy
// records stored full RFC 3339 instants.
func isoDate(value string) string {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format("2006-01-02")
	}
	if len(value) >= 10 {
		if _, err := time.Parse("2006-01-02", value[:10]); err == nil {
			return value[:10]
		}
	}
	return value
}
