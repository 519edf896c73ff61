package timeline

import (
	"testing"

	"github.com/ppiankov/provenance-radar/internal/model"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder()

	events := []model.Event{
		{EventType: model.EventSold, DateFrom: "1965-01-01", DateTo: "1966-06-30T00:00:00", SourceRef: "ref-1"},
		{DateFrom: "1980-01-01"},
	}
	sentences := []model.Sentence{
		{Seq: 2, Text: "third"},
		{Seq: 1, Text: "second"},
		{Seq: 9, Text: "late"},
	}

	items := b.Build(events, sentences)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "SOLD" || first.StartDate != "1965-01-01" || first.EndDate != "1966-06-30" {
		t.Errorf("unexpected first item: %+v", first)
	}
	if first.Text != "second" {
		t.Errorf("expected lowest sampled sentence, got %q", first.Text)
	}
	if first.SourceRef != "ref-1" {
		t.Errorf("expected source ref passed through, got %q", first.SourceRef)
	}

	second := items[1]
	if second.Title != "Event" || second.EndDate != "" {
		t.Errorf("unexpected second item: %+v", second)
	}
	if second.Text != "second" {
		t.Errorf("expected the same sampled text on every item, got %q", second.Text)
	}
}

func TestBuilder_Build_NoSampledSentence(t *testing.T) {
	b := NewBuilder()

	items := b.Build(
		[]model.Event{{EventType: model.EventDonated}},
		[]model.Sentence{{Seq: 4, Text: "outside the sample"}},
	)
	if items[0].Text != "" {
		t.Errorf("expected empty text, got %q", items[0].Text)
	}
}

func TestBuilder_Build_Empty(t *testing.T) {
	b := NewBuilder()

	items := b.Build(nil, nil)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestSortEvents(t *testing.T) {
	events := []model.Event{
		{Actor: "c", DateFrom: "1990-01-01"},
		{Actor: "a"},
		{Actor: "b", DateFrom: "1950-01-01"},
		{Actor: "d"},
	}

	SortEvents(events)

	order := ""
	for _, e := range events {
		order += e.Actor
	}
	if order != "adbc" {
		t.Errorf("expected undated first then ascending, got %q", order)
	}
}
