package sheets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"banklink/internal/core"
)

func TestSnapshotRow(t *testing.T) {
	s := Snapshot{
		TakenAt:  time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC),
		Provider: core.ProviderTrueLayer,
		Summary: core.Summary{
			Daily:   decimal.RequireFromString("12.5"),
			Weekly:  decimal.RequireFromString("12.5"),
			Monthly: decimal.RequireFromString("17.5"),
			Count:   3,
		},
	}

	row := s.Row()
	want := []any{"2025-03-12", "12.50", "12.50", "17.50", 3, "truelayer"}
	if len(row) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Spending", 2025, "2025 Spending"},
		{"  Spending ", 2025, "2025 Spending"},
		{"2024 Spending", 2025, "2024 Spending"},
		{"Q1 Spending", 2025, "2025 Q1 Spending"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestNewGoogle_MissingSpreadsheetID(t *testing.T) {
	_, err := NewGoogle(context.Background(), GoogleConfig{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	b, err := loadCredentials(GoogleConfig{CredentialsJSON: ` {"type":"service_account"} `})
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Fatalf("inline credentials: %q, %v", b, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err = loadCredentials(GoogleConfig{CredentialsFile: path})
	if err != nil || string(b) != `{"from":"file"}` {
		t.Fatalf("file credentials: %q, %v", b, err)
	}

	if _, err := loadCredentials(GoogleConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := loadCredentials(GoogleConfig{}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestClientAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Spending"}
	if _, err := c.Append(context.Background(), Snapshot{TakenAt: time.Now()}); err == nil {
		t.Fatal("expected error when service is not initialized")
	}
}

func TestMemoryAppend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ref, err := m.Append(ctx, Snapshot{Provider: core.ProviderPlaid})
	if err != nil || ref != "mem:1" {
		t.Fatalf("first append = %q, %v", ref, err)
	}
	ref, _ = m.Append(ctx, Snapshot{Provider: core.ProviderTrueLayer})
	if ref != "mem:2" {
		t.Errorf("second ref = %q", ref)
	}

	got := m.Snapshots()
	if len(got) != 2 || got[0].Provider != core.ProviderPlaid {
		t.Fatalf("unexpected snapshots %+v", got)
	}
	got[0].Provider = "changed"
	if m.Snapshots()[0].Provider != core.ProviderPlaid {
		t.Error("Snapshots should return a copy")
	}
}
