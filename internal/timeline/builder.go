package timeline

import (
	"sort"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// sampleSeqs are the sentence positions searched for item text, in order
var sampleSeqs = []int{0, 1, 2, 3}

// Builder turns events into timeline widget items
type Builder struct{}

// NewBuilder creates a new timeline builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build emits one item per event in the order given. Item text is the
// earliest of the object's first four sentences; it is not correlated with
// the individual event.
func (b *Builder) Build(events []model.Event, sentences []model.Sentence) []model.TimelineItem {
	bySeq := make(map[int]string, len(sentences))
	for _, s := range sentences {
		bySeq[s.Seq] = s.Text
	}

	var text string
	for _, seq := range sampleSeqs {
		if t, ok := bySeq[seq]; ok {
			text = t
			break
		}
	}

	items := make([]model.TimelineItem, 0, len(events))
	for _, ev := range events {
		title := string(ev.EventType)
		if title == "" {
			title = "Event"
		}
		items = append(items, model.TimelineItem{
			Title:     title,
			StartDate: model.ISODate(ev.DateFrom),
			EndDate:   model.ISODate(ev.DateTo),
			Text:      text,
			SourceRef: ev.SourceRef,
		})
	}
	return items
}

// SortEvents orders events by date_from ascending, undated first, keeping
// input order among equal dates
func SortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return model.CompareDates(model.ISODate(events[i].DateFrom), model.ISODate(events[j].DateFrom), model.MissingFirst) < 0
	})
}
