// Package web is the HTTP and WebSocket boundary of the messaging core.
// It owns routing, request decoding, and the per-connection pumps; all
// domain decisions stay behind the services layer.
package web

import (
	"log/slog"
	"net/http"

	"chatline/auth"
	"chatline/observability"
	"chatline/services"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type Server struct {
	log         *slog.Logger
	chatService services.IChatService
	authService services.IAuthService
	gate        *auth.Gate
	monitor     *observability.Monitor

	upgrader             websocket.Upgrader
	connectionBufferSize int
	allowedOrigins       []string
}

func NewServer(log *slog.Logger,
	chatService services.IChatService,
	authService services.IAuthService,
	gate *auth.Gate,
	monitor *observability.Monitor,
	connectionBufferSize int,
	allowedOrigins []string) *Server {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}
	return &Server{
		log:         log,
		chatService: chatService,
		authService: authService,
		gate:        gate,
		monitor:     monitor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedMap["*"] {
					return true
				}
				return allowedMap[r.Header.Get("Origin")]
			},
		},
		connectionBufferSize: connectionBufferSize,
		allowedOrigins:       allowedOrigins,
	}
}

// Routes wires every endpoint. The token check runs before any mutating
// call: public routes are exactly register, login, and the upgrade
// endpoint, which authenticates through its token query parameter.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.gate.Middleware)
	api.HandleFunc("/chats", s.handleCreatePersonalChat).Methods(http.MethodPost)
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{chat_id}/members", s.handleAddMember).Methods(http.MethodPost)
	api.HandleFunc("/groups/{chat_id}/members/{user_id}", s.handleRemoveMember).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{chat_id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/history/{chat_id}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
