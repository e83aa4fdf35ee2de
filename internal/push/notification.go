package push

// Notification is one push message addressed to a single device token.
type Notification struct {
	DeviceToken string
	Platform    string
	Title       string
	Body        string
	Data        map[string]string
}

// Delivery statuses recorded per device.
const (
	StatusSent         = "sent"
	StatusFailed       = "failed"
	StatusInvalidToken = "invalid_token"
)

// Result is the per-token outcome of a send attempt.
type Result struct {
	DeviceToken  string
	Success      bool
	Status       string
	ErrorMessage string
	MessageID    string
}
