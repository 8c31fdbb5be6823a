package imgw

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// wireRecord mirrors one element of the feed array. Fields whose JSON type
// varies between string and number are kept raw.
type wireRecord struct {
	ID          json.RawMessage `json:"id"`
	EventName   json.RawMessage `json:"nazwa_zdarzenia"`
	Level       json.RawMessage `json:"stopien"`
	Probability json.RawMessage `json:"prawdopodobienstwo"`
	ValidFrom   json.RawMessage `json:"obowiazuje_od"`
	ValidTo     json.RawMessage `json:"obowiazuje_do"`
	PublishedAt json.RawMessage `json:"opublikowano"`
	Content     json.RawMessage `json:"tresc"`
	Comment     json.RawMessage `json:"komentarz"`
	Office      json.RawMessage `json:"biuro"`
	Teryt       json.RawMessage `json:"teryt"`
}

// Decode parses a feed payload: a JSON array of warning objects. A payload
// that is not an array is an error; an element that is not an object is
// skipped.
func Decode(body []byte) ([]domain.FeedRecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	out := make([]domain.FeedRecord, 0, len(items))
	for _, raw := range items {
		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		out = append(out, domain.FeedRecord{
			ID:          scalar(w.ID),
			EventName:   scalar(w.EventName),
			Level:       scalar(w.Level),
			Probability: scalar(w.Probability),
			ValidFrom:   scalar(w.ValidFrom),
			ValidTo:     scalar(w.ValidTo),
			PublishedAt: scalar(w.PublishedAt),
			Content:     scalar(w.Content),
			Comment:     scalar(w.Comment),
			Office:      scalar(w.Office),
			Regions:     scalarList(w.Teryt),
			Raw:         append(json.RawMessage(nil), raw...),
		})
	}
	return out, nil
}

// scalar renders a JSON string or number as text. Null, missing, and
// structured values become "".
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// scalarList renders each element of a JSON array with scalar. Anything other
// than an array yields nil.
func scalarList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, scalar(it))
	}
	return out
}
