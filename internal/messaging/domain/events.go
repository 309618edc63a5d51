package domain

// NotificationJob e-mail notification job queued after a send
type NotificationJob struct {
	TenantID  string    `json:"tenant_id"`
	Thread    ThreadKey `json:"thread"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
}

// MessageEvent event published for external consumers after a send
type MessageEvent struct {
	Event     string  `json:"event"`
	Message   Message `json:"message"`
	ThreadKey string  `json:"thread_key"`
}
