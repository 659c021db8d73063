package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

// stream отправляет текущие снимки, затем каждое изменение.
// Клиент отличает повторы по полю version.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("Websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	changes, cancel := s.session.Subscribe(s.config.StreamBuffer)
	defer cancel()

	// входящие сообщения не нужны, чтение только обнаруживает закрытие
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, snap := range s.session.Snapshots() {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			logger.Printf("Websocket write error: %v", err)
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-changes:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session stopped"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Printf("Websocket write error: %v", err)
				return
			}
		}
	}
}
