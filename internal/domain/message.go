package domain

const (
	MessageUnread   = "UNREAD"
	MessageRead     = "READ"
	MessageArchived = "ARCHIVED"
)

// Message is a support or vendor inbox entry.
type Message struct {
	Base
	Sender   string `json:"sender" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Body     string `json:"body"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status   string `json:"status"`
}

func (m *Message) RecordStatus() string { return m.Status }

func (m *Message) SetStatus(status string) { m.Status = status }

func (m *Message) SearchFields() []string {
	return []string{m.Sender, m.Subject, m.Body}
}

func (m *Message) FilterValue(field string) (string, bool) {
	if field == "priority" {
		return m.Priority, true
	}
	return "", false
}

func (m *Message) SortValue(key string) (any, bool) {
	switch key {
	case "sender":
		return m.Sender, true
	case "subject":
		return m.Subject, true
	}
	return m.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "messages",
		Statuses: []string{MessageUnread, MessageRead, MessageArchived},
		SortKeys: map[string]SortType{"sender": SortText, "subject": SortText},
		New:      func() Record { return &Message{} },
	})
}
