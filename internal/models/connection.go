package models

import "strings"

// StoreKind — тип активного хранилища.
type StoreKind string

const (
	KindNone   StoreKind = "none"
	KindHosted StoreKind = "hosted"
	KindDirect StoreKind = "direct"
)

// ParseStoreKind разбирает строку в StoreKind (регистр не важен).
func ParseStoreKind(s string) (StoreKind, bool) {
	switch StoreKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNone, "":
		return KindNone, true
	case KindHosted:
		return KindHosted, true
	case KindDirect:
		return KindDirect, true
	}

	return KindNone, false
}

// ConnectionStatus — статус текущего подключения.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// ConnectionState — снимок единого на процесс состояния подключения.
// ErrorMessage == nil, если ошибки нет.
type ConnectionState struct {
	Kind         StoreKind        `json:"kind"`
	Status       ConnectionStatus `json:"status"`
	ErrorMessage *string          `json:"error_message"`
}

// DefaultDirectPort — порт прямого подключения по умолчанию.
const DefaultDirectPort = 3306

// SwitchConfig — параметры переключения хранилища.
//
//	{"kind":"hosted"}
//	{"kind":"direct","host":"db","user":"u","password":"p","database":"portal","port":3306}
type SwitchConfig struct {
	Kind     StoreKind `json:"kind"`
	Host     string    `json:"host,omitempty"`
	User     string    `json:"user,omitempty"`
	Password string    `json:"password,omitempty"`
	Database string    `json:"database,omitempty"`
	// Port == 0 -> DefaultDirectPort.
	Port int `json:"port,omitempty"`
}

// DirectTarget — разрешённые параметры прямого подключения.
type DirectTarget struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}
