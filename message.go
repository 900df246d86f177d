package offlinecache

import (
	"context"
	"fmt"
)

// Message types of the worker ⇄ page protocol.
const (
	// MsgSkipWaiting promotes a waiting worker to active.
	MsgSkipWaiting = "SKIP_WAITING"
	// MsgClearCache deletes one named store, or all stores.
	MsgClearCache = "CLEAR_CACHE"
	// MsgCacheCleared acknowledges a completed CLEAR_CACHE.
	MsgCacheCleared = "CACHE_CLEARED"
	// MsgGetVersion requests the worker version.
	MsgGetVersion = "GET_VERSION"
	// MsgVersionInfo carries the worker version and cache name.
	MsgVersionInfo = "VERSION_INFO"
	// MsgUpdateAvailable is broadcast to all pages on controller change.
	MsgUpdateAvailable = "UPDATE_AVAILABLE"
	// MsgNotification carries a push notification to display.
	MsgNotification = "NOTIFICATION"
	// MsgFocus asks a page to focus itself.
	MsgFocus = "FOCUS"
	// MsgOpenWindow asks for a new window at the given URL.
	MsgOpenWindow = "OPEN_WINDOW"
)

// Message is the typed envelope exchanged between the worker and pages.
type Message struct {
	Type      string `json:"type"`
	Store     string `json:"store,omitempty"`
	Version   string `json:"version,omitempty"`
	CacheName string `json:"cacheName,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	Icon      string `json:"icon,omitempty"`
	Vibration []int  `json:"vibration,omitempty"`
}

// HandleMessage processes a command message from a page and returns the
// reply, if the command has one.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) (*Message, error) {
	switch msg.Type {
	case MsgSkipWaiting:
		if w.State() != StateWaiting {
			return nil, nil
		}
		w.log.Info().Msg("Skip waiting requested")
		return nil, w.Activate(ctx)
	case MsgClearCache:
		if err := w.clearCache(msg.Store); err != nil {
			return nil, err
		}
		return &Message{Type: MsgCacheCleared, Store: msg.Store}, nil
	case MsgGetVersion:
		return &Message{
			Type:      MsgVersionInfo,
			Version:   w.version,
			CacheName: w.staticName,
		}, nil
	}
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

// clearCache deletes the named store, or every store if name is empty.
func (w *Worker) clearCache(name string) error {
	if name != "" {
		w.log.Info().Str("store", name).Msg("Clearing store")
		_, err := w.stores.DeleteStore(name)
		return err
	}
	names, err := w.stores.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		w.log.Info().Str("store", name).Msg("Clearing store")
		if _, err := w.stores.DeleteStore(name); err != nil {
			return err
		}
	}
	return nil
}
