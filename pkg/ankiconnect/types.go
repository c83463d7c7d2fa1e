package ankiconnect

// Note is one flashcard as AnkiConnect expects it on the wire.
type Note struct {
	DeckName  string   `json:"deckName"`
	ModelName string   `json:"modelName"`
	Fields    Fields   `json:"fields"`
	Tags      []string `json:"tags"`
}

// Fields holds the front and back content of a note. The JSON keys are
// the field names of Anki's Basic model and must keep their casing.
type Fields struct {
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// Config holds configuration for the AnkiConnect client.
type Config struct {
	// URL of the AnkiConnect endpoint (default http://127.0.0.1:8765).
	URL string

	// HTTP client timeout in seconds (default: 30).
	Timeout int
}

// Error codes reported by the client.
const (
	CodeConnectFailed = "connect_failed"
	CodeBadResponse   = "bad_response"
	CodeRejected      = "rejected"
	CodeMarshalError  = "marshal_error"
)

// Error represents a failure talking to AnkiConnect.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
