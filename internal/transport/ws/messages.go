package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/meet-bridge/internal/conference"
	"github.com/cwrk-planet/meet-bridge/internal/meeting"
)

// Сервер -> клиент
const (
	TypeState    = "state"    // состояние страницы
	TypeProgress = "progress" // ход ожидания бэкенда
	TypeMount    = "mount"    // создать виджет
	TypeDispose  = "dispose"  // уничтожить виджет
	TypePresence = "presence" // сколько вкладок открыто в комнате
)

// Клиент -> сервер
const (
	TypeWidgetReady = "widget_ready"
	TypeWidgetError = "widget_error"
	TypeEvent       = "event"
	TypeRetry       = "retry"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type StatePayload = meeting.Snapshot

type ProgressPayload struct {
	Attempt        int    `json:"attempt"`
	MaxAttempts    int    `json:"max_attempts"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Status         string `json:"status,omitempty"`
}

// MountPayload: всё, что нужно шиму для создания виджета.
type MountPayload struct {
	Domain      string         `json:"domain"`
	RoomName    string         `json:"room_name"`
	DisplayName string         `json:"display_name,omitempty"`
	Config      map[string]any `json:"config_overwrite,omitempty"`
	Interface   map[string]any `json:"interface_config_overwrite,omitempty"`
}

type WidgetErrorPayload struct {
	Message string `json:"message"`
}

type EventPayload = conference.Event

type PresencePayload struct {
	RoomName string `json:"room_name"`
	Tabs     int    `json:"tabs"`
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
