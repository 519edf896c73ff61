package model

// Object is a catalogued cultural-heritage object
type Object struct {
	ObjectID    int64    `json:"object_id"`
	Source      string   `json:"source"` // Source collection code (e.g., "AIC")
	Title       string   `json:"title,omitempty"`
	Creator     string   `json:"creator,omitempty"`
	DateDisplay string   `json:"date_display,omitempty"` // Catalogue display date, free text
	Culture     string   `json:"culture,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	RiskScore   *float64 `json:"risk_score"` // Raw risk ratio (1.0 = 100%), nil when not scored
}

// Record converts the object into a generic row so the risk dual-write can be applied
func (o Object) Record() map[string]any {
	row := map[string]any{
		"object_id":    o.ObjectID,
		"source":       o.Source,
		"title":        nullable(o.Title),
		"creator":      nullable(o.Creator),
		"date_display": nullable(o.DateDisplay),
		"culture":      nullable(o.Culture),
		"image_url":    nullable(o.ImageURL),
		"risk_score":   nil,
	}
	if o.RiskScore != nil {
		row["risk_score"] = *o.RiskScore
	}
	return row
}

// Sentence is one provenance sentence of an object, in reading order
type Sentence struct {
	ObjectID int64  `json:"object_id,omitempty"`
	Seq      int    `json:"seq"`      // Reading order, unique within the object
	Text     string `json:"sentence"` // Raw catalogue text
}

// RiskSignal is a stored reason contributing to an object's risk ratio
type RiskSignal struct {
	Code   string  `json:"code"`
	Detail string  `json:"detail,omitempty"`
	Weight float64 `json:"weight"`
}

// Lead is a flagged object row as listed by the leads endpoint
type Lead struct {
	ObjectID   int64    `json:"object_id"`
	Source     string   `json:"source"`
	Title      string   `json:"title,omitempty"`
	Creator    string   `json:"creator,omitempty"`
	RiskScore  *float64 `json:"risk_score"`
	TopSignals string   `json:"top_signals,omitempty"` // Comma-separated signal codes, heaviest first
}

// Record converts the lead into a generic row for the risk dual-write
func (l Lead) Record() map[string]any {
	row := map[string]any{
		"object_id":   l.ObjectID,
		"source":      l.Source,
		"title":       nullable(l.Title),
		"creator":     nullable(l.Creator),
		"top_signals": nullable(l.TopSignals),
		"risk_score":  nil,
	}
	if l.RiskScore != nil {
		row["risk_score"] = *l.RiskScore
	}
	return row
}

// KeywordHit is a sentence matching a keyword query
type KeywordHit struct {
	ObjectID int64  `json:"object_id"`
	Seq      int    `json:"seq"`
	Sentence string `json:"sentence"`
	Source   string `json:"source"`
	Title    string `json:"title,omitempty"`
	Creator  string `json:"creator,omitempty"`
}

// SimilarHit is the closest sentence of an object to a semantic query
type SimilarHit struct {
	KeywordHit
	Distance float64 `json:"distance"` // Cosine distance, lower is closer
}

// VocabEntry is a distinct value with its frequency
type VocabEntry struct {
	Value string `json:"v"`
	Count int    `json:"n"`
}

// Counts summarises store contents for health checks
type Counts struct {
	Objects     int64 `json:"objects"`
	Sentences   int64 `json:"sentences"`
	RiskSignals int64 `json:"risk_signals"`
}

// PlaceInfo is a place mentioned in an object's provenance, optionally geocoded
type PlaceInfo struct {
	Place string   `json:"place"`
	Date  string   `json:"date"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
