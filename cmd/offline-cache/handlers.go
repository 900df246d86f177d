package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	offlinecache "github.com/anapath-lab/offline-cache"
	"github.com/anapath-lab/offline-cache/client"

	"github.com/rs/zerolog/log"
)

func healthHandler(worker *offlinecache.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"version":   worker.Version(),
			"cacheName": worker.CacheName(),
			"state":     string(worker.State()),
		})
	}
}

// messageHandler accepts a worker command from a page and replies with
// the worker's response message, if the command has one.
func messageHandler(worker *offlinecache.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg offlinecache.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "Malformed message", http.StatusBadRequest)
			return
		}
		reply, err := worker.HandleMessage(r.Context(), msg)
		if err != nil {
			log.Warn().Err(err).Str("type", msg.Type).Msg("Message failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(reply)
	}
}

// eventsHandler streams worker broadcasts to a page as server-sent
// events. The page identifies itself with the `page` query parameter.
func eventsHandler(hub *client.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		info, messages := hub.Subscribe(r.URL.Query().Get("page"))
		defer hub.Unsubscribe(info.ID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error().Err(err).Msg("Could not encode message")
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
