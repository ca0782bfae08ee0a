package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oddsflow/scanner/internal/models"
	"github.com/oddsflow/scanner/internal/ranker"
)

func sampleResults() []models.RankedMarket {
	return []models.RankedMarket{
		{
			Platform:   "kalshi",
			MarketID:   "KXSEN-26",
			Title:      "Senate control flips",
			Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			P:          0.42,
			Flow:       512,
			Depth:      1800,
			ZFlow:      3.1,
			DepthRatio: 0.28,
			Entropy:    0.68,
			Score:      1.234,
		},
		{
			Platform:   "kalshi",
			MarketID:   "KXPRES-28",
			Title:      "Incumbent <wins> reelection",
			Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			P:          0.55,
			Flow:       200,
			Depth:      900,
			ZFlow:      2.7,
			DepthRatio: 0.22,
			Entropy:    0.69,
			Score:      0.871,
		},
	}
}

func TestRender_WithResults(t *testing.T) {
	html, err := Render("kalshi", ranker.DefaultPublishThresholds(), sampleResults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	page := string(html)

	for _, want := range []string{
		"Senate control flips",
		"kalshi:KXSEN-26",
		"score=1.2340",
		"0.420",
		"2026-08-30T12:00:00Z",
		"Connector: <b>kalshi</b>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
	if strings.Contains(page, "No markets passed") {
		t.Error("empty-state block rendered despite results")
	}
}

func TestRender_EscapesTitles(t *testing.T) {
	html, err := Render("kalshi", ranker.DefaultPublishThresholds(), sampleResults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	page := string(html)

	if strings.Contains(page, "<wins>") {
		t.Error("title markup not escaped")
	}
	if !strings.Contains(page, "&lt;wins&gt;") {
		t.Error("escaped title not found in page")
	}
}

func TestRender_Empty(t *testing.T) {
	html, err := Render("mock", ranker.DefaultPublishThresholds(), nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	page := string(html)

	if !strings.Contains(page, "No markets passed the publish filter") {
		t.Error("empty-state block missing")
	}
	if strings.Contains(page, "class=\"card\"") {
		t.Error("market cards rendered for an empty result set")
	}
}

func TestRender_ShowsThresholds(t *testing.T) {
	th := ranker.PublishThresholds{ZMin: 2.5, DepthRatioMin: 0.05, EntropyMin: 0.45, PMin: 0.05, PMax: 0.95}
	html, err := Render("mock", th, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	page := string(html)

	for _, want := range []string{"2.5", "0.05", "0.45", "0.95"} {
		if !strings.Contains(page, want) {
			t.Errorf("thresholds banner missing %q", want)
		}
	}
}

func TestWrite_CreatesDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "docs", "nested", "index.html")

	err := Write(out, "mock", ranker.DefaultPublishThresholds(), sampleResults())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !strings.Contains(string(data), "Senate control flips") {
		t.Error("written report missing expected content")
	}
}
