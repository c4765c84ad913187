package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAPIKeyKeyHashNotInJSON(t *testing.T) {
	apiKey := APIKey{
		ID:        1,
		KeyHash:   "sha256hashvalue",
		KeyPrefix: "fmr_a1b2c3d4",
		Label:     "FMR Watch",
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	b, err := json.Marshal(apiKey)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if _, ok := m["key_hash"]; ok {
		t.Error("key_hash should NOT appear in JSON output (json:\"-\" tag)")
	}
	if _, ok := m["last_used"]; ok {
		t.Error("last_used should be omitted until the key is first used")
	}
	for _, k := range []string{"key_prefix", "label", "is_active"} {
		if _, ok := m[k]; !ok {
			t.Errorf("%s should be present in JSON output", k)
		}
	}
}

func TestSubprojectAbsentFieldsAreNull(t *testing.T) {
	title := "Farm-to-market road"
	sp := Subproject{
		ID:          3,
		Code:        "SP-2023-001",
		Title:       &title,
		TotalBudget: decimal.NewNullDecimal(decimal.RequireFromString("1500000.75")),
	}

	b, err := json.Marshal(sp)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if m["code"] != "SP-2023-001" || m["title"] != title {
		t.Errorf("identity fields = %v / %v", m["code"], m["title"])
	}
	if m["total_budget"] != "1500000.75" {
		t.Errorf("total_budget = %#v, want exact decimal string", m["total_budget"])
	}
	for _, k := range []string{"contractor", "approved_budget", "latitude", "year_funded", "start_date", "status"} {
		v, ok := m[k]
		if !ok {
			t.Errorf("%s missing from JSON, want explicit null", k)
		} else if v != nil {
			t.Errorf("%s = %#v, want null", k, v)
		}
	}
}

func TestErrorResponseOmitsEmptyKind(t *testing.T) {
	b, _ := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: 500, Message: "boom"}})
	if string(b) != `{"error":{"code":500,"message":"boom"}}` {
		t.Errorf("ErrorResponse = %s", b)
	}
}
