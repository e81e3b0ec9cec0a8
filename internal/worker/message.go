package worker

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// MessageType names a message exchanged between sessions and the worker.
type MessageType string

const (
	// session -> worker
	SetCityCode         MessageType = "SET_CITY_CODE"
	ForceForegroundSync MessageType = "FORCE_FOREGROUND_SYNC"

	// worker -> session
	RidesUpdateSuccessful MessageType = "RIDES_UPDATE_SUCCESSFUL"
)

// TopicClients is the broker topic the worker publishes to.
const TopicClients = "clients"

// SyncTag identifies the recurring rides refresh.
const SyncTag = "update-rides-6hr"

type Message struct {
	Type     MessageType `json:"type"`
	CityCode string      `json:"cityCode,omitempty"`
	Data     []ride.Ride `json:"data,omitempty"`
}

// DecodeMessage parses a JSON message. Unknown types are not an error; the
// worker ignores them.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decoding message: missing type")
	}
	return m, nil
}
