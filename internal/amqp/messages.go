package amqp

import (
	"encoding/json"
	"time"
)

// AccountLinkedMessage tells workers that a bank account was just linked.
// It carries no tokens; consumers read them from the session store.
type AccountLinkedMessage struct {
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAccountLinkedMessage(provider string) *AccountLinkedMessage {
	return &AccountLinkedMessage{
		Provider:  provider,
		Timestamp: time.Now(),
	}
}

func (m *AccountLinkedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AccountLinkedMessageFromJSON(data []byte) (*AccountLinkedMessage, error) {
	var msg AccountLinkedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
