package cloudsync

import (
	"bytes"
	"encoding/json"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
)

// Stored JSON fields arrive from the backends either as native structured
// values or as string-encoded (sometimes double-encoded) values. The decode
// helpers below normalize all three shapes once, at the service boundary, and
// fall back to a zero value instead of propagating parse errors.

// decodeFlexible unmarshals raw into v, unwrapping up to two layers of
// string encoding. Reports whether anything was decoded.
func decodeFlexible(raw []byte, v any) bool {
	for i := 0; i < 3; i++ {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			return false
		}
		if err := json.Unmarshal(raw, v); err == nil {
			return true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		raw = []byte(s)
	}
	return false
}

func decodeAnalytics(raw []byte) UserAnalytics {
	var a UserAnalytics
	if !decodeFlexible(raw, &a) {
		return DefaultAnalytics()
	}
	if a.ModelUsage == nil {
		a.ModelUsage = map[string]int{}
	}
	if a.History == nil {
		a.History = []int{}
	}
	if len(a.History) > HistorySize {
		a.History = a.History[len(a.History)-HistorySize:]
	}
	return a
}

func decodeSessions(raw []byte) []chat.Session {
	var sessions []chat.Session
	if !decodeFlexible(raw, &sessions) {
		return []chat.Session{}
	}
	return sessions
}

func decodeStringList(raw []byte) []string {
	var list []string
	if !decodeFlexible(raw, &list) {
		return nil
	}
	return list
}

// enterpriseBlob is the persisted enterprise shape:
// { config: CustomPlanConfig | null, members: string[] }.
type enterpriseBlob struct {
	Config  *catalog.CustomPlanConfig `json:"config"`
	Members []string                  `json:"members"`
}

func decodeEnterprise(raw []byte) enterpriseBlob {
	var e enterpriseBlob
	if !decodeFlexible(raw, &e) {
		return enterpriseBlob{}
	}
	return e
}

func encodeJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
