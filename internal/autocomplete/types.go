package autocomplete

// Position is a zero-based cursor location. Character counts runes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// ItemKind enumerates completion item categories surfaced to clients.
type ItemKind string

const (
	KindComponent ItemKind = "component"
	KindProperty  ItemKind = "property"
)

// Command names a host action to run after an item is accepted.
type Command string

const (
	CommandFormat    Command = "format"
	CommandRetrigger Command = "retrigger"
)

// LabelDetails is rendered next to the label: Description as muted text and
// Detail dimmed after it.
type LabelDetails struct {
	Description string `json:"description,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Item represents one completion suggestion. InsertText uses ${N:default}
// tab stops.
type Item struct {
	Label         string        `json:"label"`
	LabelDetails  *LabelDetails `json:"labelDetails,omitempty"`
	Kind          ItemKind      `json:"kind"`
	InsertText    string        `json:"insertText"`
	FilterText    string        `json:"filterText,omitempty"`
	Detail        string        `json:"detail,omitempty"`
	Documentation string        `json:"documentation,omitempty"`
	SortText      string        `json:"sortText,omitempty"`
	Command       Command       `json:"command,omitempty"`
}

// Trigger is the keystroke that caused a completion request. An empty
// trigger runs both providers.
type Trigger string

const (
	TriggerAny     Trigger = ""
	TriggerColon   Trigger = ":"
	TriggerNewline Trigger = "\n"
	TriggerSpace   Trigger = " "
)

// Request is one completion invocation against a document's lines.
type Request struct {
	Lines    []string
	Position Position
	Trigger  Trigger
}
