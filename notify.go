package offlinecache

import "context"

const (
	notificationTitle = "Laboratoire ANAPATH"
	defaultPushText   = "Nouveau compte rendu disponible"
)

// notificationVibration is the fixed vibration pattern attached to
// displayed notifications.
var notificationVibration = []int{100, 50, 100}

// HandlePush presents a notification derived from the push payload text.
func (w *Worker) HandlePush(ctx context.Context, payload []byte) error {
	body := string(payload)
	if body == "" {
		body = defaultPushText
	}
	w.log.Debug().Str("body", body).Msg("Push received")
	w.clients.Broadcast(Message{
		Type:      MsgNotification,
		Title:     notificationTitle,
		Body:      body,
		Icon:      w.iconPath,
		Vibration: notificationVibration,
	})
	return nil
}

// HandleNotificationClick focuses an already-open page if one exists,
// otherwise opens a new one at the root path.
func (w *Worker) HandleNotificationClick(ctx context.Context) error {
	clients, err := w.clients.Clients()
	if err != nil {
		return err
	}
	if len(clients) > 0 {
		return w.clients.Focus(clients[0].ID)
	}
	return w.clients.OpenWindow("/")
}

// HandleSync reacts to a background-sync tag. Flushing data queued while
// offline is the pages' responsibility; no queue is wired here, so the
// event is only acknowledged.
func (w *Worker) HandleSync(ctx context.Context, tag string) error {
	w.log.Info().Str("tag", tag).Msg("Sync event received, nothing queued locally")
	return nil
}
