package tools

// Weather is the payload the weather display renders.
type Weather struct {
	Location    string  `json:"location"`
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
}

// Environment is the device-side state the tools mutate. The surrounding
// front end owns it; handlers never touch UI state directly.
type Environment interface {
	// StartCall places a call to the named contact.
	StartCall(contact string) error
	// EndCall hangs up the active call, if any.
	EndCall() error
	// SendMessage sends a text message to the named contact.
	SendMessage(contact, body string) error
	// SetReminder stores a reminder. when may be empty.
	SetReminder(task, when string) error
	// Notifications returns the unread notifications.
	Notifications() ([]string, error)
	// ControlScreen performs a named screen action (brightness, lock, ...).
	ControlScreen(action string) error
	// ShowWeather resolves and displays the weather for a location.
	ShowWeather(location string) (Weather, error)
	// ShowImage displays a generated image by URL.
	ShowImage(prompt, url string) error
}
