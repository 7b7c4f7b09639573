package messages

import (
	"encoding/json"

	"github.com/strongdm/mdc/internal/autocomplete"
	"github.com/strongdm/mdc/internal/scan"
)

// Type names for message envelopes.
const (
	TypeDocumentOpen    = "document.open"
	TypeDocumentChange  = "document.change"
	TypeDocumentClose   = "document.close"
	TypeCompletion      = "completion.request"
	TypeCompletionItems = "completion.result"
	TypeFold            = "fold.request"
	TypeFoldRanges      = "fold.result"
	TypeCatalogRefresh  = "catalog.refresh"
	TypeCatalogUpdated  = "catalog.updated"
	TypeAck             = "ack"
)

// Version is the current envelope version.
const Version = 1

// Envelope is a versioned, self-describing message wrapper.
// Payload must be decoded into a concrete payload struct based on Type.
type Envelope struct {
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DocumentPayload (client -> daemon) opens or replaces a document.
type DocumentPayload struct {
	URI        string `json:"uri"`
	LanguageID string `json:"language_id,omitempty"`
	Text       string `json:"text"`
}

// DocumentClosePayload (client -> daemon) stops tracking a document.
type DocumentClosePayload struct {
	URI string `json:"uri"`
}

// CompletionPayload (client -> daemon) asks for completion items.
type CompletionPayload struct {
	URI       string `json:"uri"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
	Trigger   string `json:"trigger,omitempty"`
}

// CompletionResultPayload (daemon -> client) carries completion items.
type CompletionResultPayload struct {
	URI   string              `json:"uri"`
	Items []autocomplete.Item `json:"items"`
}

// FoldPayload (client -> daemon) asks for folding ranges.
type FoldPayload struct {
	URI string `json:"uri"`
}

// FoldResultPayload (daemon -> client) carries folding ranges.
type FoldResultPayload struct {
	URI    string       `json:"uri"`
	Ranges []scan.Range `json:"ranges"`
}

// CatalogPayload (daemon -> clients) announces a replaced catalog.
type CatalogPayload struct {
	Source     string   `json:"source"`
	Components int      `json:"components"`
	Names      []string `json:"names,omitempty"`
}

// AckPayload acknowledges receipt of a client command.
type AckPayload struct {
	Cmd     string `json:"cmd"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WrapPayload marshals a payload into an envelope.
func WrapPayload(typ, requestID string, payload any) (*Envelope, error) {
	env := &Envelope{
		Type:      typ,
		Version:   Version,
		RequestID: requestID,
	}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Payload = raw
	return env, nil
}

// UnmarshalPayload decodes the envelope payload into the provided destination.
func UnmarshalPayload[T any](env *Envelope, dst *T) error {
	return json.Unmarshal(env.Payload, dst)
}
