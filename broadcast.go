package offlinecache

// ClientInfo describes a connected page.
type ClientInfo struct {
	ID  string
	URL string
}

// ClientBroadcaster is the capability the worker needs to talk to its
// connected pages: enumerate them, post messages, and steer focus.
// Implementations must not block the worker; delivery is best-effort.
type ClientBroadcaster interface {
	// Clients returns the currently connected pages.
	Clients() ([]ClientInfo, error)
	// Post sends a message to a single page.
	Post(id string, msg Message) error
	// Broadcast sends a message to all pages.
	Broadcast(msg Message)
	// Focus asks the given page to bring itself to the front.
	Focus(id string) error
	// OpenWindow asks for a new page at the given URL.
	OpenWindow(url string) error
}

// noopBroadcaster is used when no broadcaster is configured.
type noopBroadcaster struct{}

func (noopBroadcaster) Clients() ([]ClientInfo, error) { return nil, nil }
func (noopBroadcaster) Post(string, Message) error     { return nil }
func (noopBroadcaster) Broadcast(Message)              {}
func (noopBroadcaster) Focus(string) error             { return nil }
func (noopBroadcaster) OpenWindow(string) error        { return nil }
