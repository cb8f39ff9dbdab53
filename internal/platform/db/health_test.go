package db

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPoolStats_JSON(t *testing.T) {
	stats := PoolStats{
		TotalConns:      10,
		IdleConns:       4,
		AcquiredConns:   6,
		MaxConns:        20,
		AcquireCount:    100,
		AcquireDuration: "1.5s",
		Healthy:         true,
	}
	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"total_conns":      float64(10),
		"idle_conns":       float64(4),
		"acquired_conns":   float64(6),
		"max_conns":        float64(20),
		"acquire_count":    float64(100),
		"acquire_duration": "1.5s",
		"healthy":          true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PoolStats JSON mismatch (-want +got):\n%s", diff)
	}
}
