package domain

// NotificationType server to client frame type
type NotificationType string

const (
	// NotificationNewMessage something changed in a thread the user can see
	NotificationNewMessage NotificationType = "new_message"
)

// Notification frame pushed to live connections, carries no content
type Notification struct {
	Type NotificationType `json:"type"`
}

// ThreadEvent fan-out request for one appended message
type ThreadEvent struct {
	TenantID string    `json:"tenant_id"`
	Thread   ThreadKey `json:"thread"`
	Viewers  []string  `json:"viewers"`
}

// ConnState lifecycle of one live connection
type ConnState int32

const (
	// ConnConnecting accepted, not yet registered
	ConnConnecting ConnState = iota
	// ConnOpen registered, receives notifications
	ConnOpen
	// ConnClosed unregistered
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "CONNECTING"
	case ConnOpen:
		return "OPEN"
	case ConnClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}
