package internal

import "time"

// TranslationRecord is a single translation kept in the history store.
// ID is empty until the record has been persisted.
type TranslationRecord struct {
	ID             string    `json:"id,omitempty"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	FromLanguage   string    `json:"fromLanguage"`
	ToLanguage     string    `json:"toLanguage"`
	Timestamp      time.Time `json:"timestamp"`
}

// Subscription is a handle on a live query. Close stops delivery.
type Subscription interface {
	Close() error
}
