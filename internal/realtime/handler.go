package realtime

import (
	"net/http"

	"parkwatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced at the gateway.
		return true
	},
}

// Handler upgrades websocket requests and attaches them to the hub.
type Handler struct {
	hub *Hub
	log *logger.Logger
}

func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub: hub,
		log: log,
	}
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade websocket connection", "error", err)
		return
	}

	clientID := uuid.New().String()
	sub := h.hub.Register(clientID)

	h.log.Info("Websocket client connected", "client_id", clientID, "remote", r.RemoteAddr)

	client := newClient(h.hub, conn, sub, h.log)
	go client.run()
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", h.Connect)
}
