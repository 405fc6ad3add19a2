package history

import (
	"context"
	"testing"
)

func TestMemoryStore_AscendingOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Append newest-last so ascending order is observable.
	for i := 0; i < 10; i++ {
		err := s.Record(ctx, Record{
			Asset:     "bitcoin",
			Timestamp: int64(1700000000 + i*60),
			Price:     float64(30000 + i),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := s.History(ctx, "bitcoin", 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp < records[i-1].Timestamp {
			t.Errorf("records out of order at %d: %d < %d", i, records[i].Timestamp, records[i-1].Timestamp)
		}
	}
	// Most recent 5 of prices 30000..30009.
	if records[0].Price != 30005 || records[4].Price != 30009 {
		t.Errorf("unexpected window: first=%v last=%v", records[0].Price, records[4].Price)
	}
}

func TestMemoryStore_LimitExceedsSize(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Record(ctx, Record{Asset: "bitcoin", Timestamp: int64(i), Price: float64(i)})
	}

	records, err := s.History(ctx, "bitcoin", 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected all 3 records, got %d", len(records))
	}
}

func TestMemoryStore_UnknownAsset(t *testing.T) {
	s := NewMemoryStore()

	records, err := s.History(context.Background(), "no-such-asset", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty history, got %d records", len(records))
	}
}

func TestMemoryStore_Wraparound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	total := ringCapacity + 10
	for i := 0; i < total; i++ {
		s.Record(ctx, Record{Asset: "bitcoin", Timestamp: int64(i), Price: float64(i)})
	}

	records, _ := s.History(ctx, "bitcoin", ringCapacity)
	if len(records) != ringCapacity {
		t.Fatalf("expected %d records after wraparound, got %d", ringCapacity, len(records))
	}
	// Oldest surviving record is total-ringCapacity.
	if records[0].Timestamp != int64(total-ringCapacity) {
		t.Errorf("oldest record = %d, expected %d", records[0].Timestamp, total-ringCapacity)
	}
	if records[len(records)-1].Timestamp != int64(total-1) {
		t.Errorf("newest record = %d, expected %d", records[len(records)-1].Timestamp, total-1)
	}
}

func TestSeededMemoryStore_ReferenceSeries(t *testing.T) {
	s := NewSeededMemoryStore()

	records, err := s.History(context.Background(), "bitcoin", 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("expected 7 seeded records, got %d", len(records))
	}
	if records[0].Price != 29500 || records[6].Price != 32500 {
		t.Errorf("unexpected seeded series: first=%v last=%v", records[0].Price, records[6].Price)
	}
}

func TestColor(t *testing.T) {
	if Color("bitcoin") != "rgba(255, 193, 7, 1)" {
		t.Errorf("unexpected bitcoin color %q", Color("bitcoin"))
	}
	if Color("unknown") != defaultColor {
		t.Errorf("unexpected fallback color %q", Color("unknown"))
	}
}
