package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/middleware"
	"github.com/lekenzi/QuizNexus/internal/websocket"
)

// WSHandler обслуживает WebSocket обратного отсчета викторины
type WSHandler struct {
	registry *websocket.SessionRegistry
	tokens   middleware.TokenParser
	upgrader gorillaws.Upgrader
}

// NewWSHandler создает обработчик. allowedOrigins синхронизирован с CORS в main.go.
func NewWSHandler(registry *websocket.SessionRegistry, tokens middleware.TokenParser, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = struct{}{}
	}

	return &WSHandler{
		registry: registry,
		tokens:   tokens,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Пустой Origin - не браузерный клиент
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				log.Printf("[WSHandler] Отклонен origin: %s", origin)
				return false
			},
		},
	}
}

// HandleCountdown обрабатывает GET /ws/countdown?token=<jwt>
func (h *WSHandler) HandleCountdown(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if bearer, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
			token = bearer
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication token", "error_type": "token_missing"})
		return
	}

	// НЕ логируем токен
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		log.Printf("[WSHandler] Невалидный токен: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
		return
	}
	if claims.Role != entity.RoleUser {
		c.JSON(http.StatusForbidden, gin.H{"error": "Countdown is available to users only"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("[WSHandler] Ошибка upgrade для UserID %d: %v", claims.UserID, err)
		return
	}

	client := websocket.NewClient(conn, claims.UserID)
	h.registry.Register(client)
	log.Printf("[WSHandler] Подключение UserID: %d, ConnID: %s", claims.UserID, client.ConnectionID)

	client.StartPumps(h.handleMessage, func(cl *websocket.Client) {
		h.registry.Remove(cl.ConnectionID)
		log.Printf("[WSHandler] Отключение UserID: %d, ConnID: %s", cl.UserID, cl.ConnectionID)
	})
}

// handleMessage разбирает входящее сообщение. Неизвестный тип не закрывает соединение.
func (h *WSHandler) handleMessage(message []byte, client *websocket.Client) error {
	var msg websocket.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		client.Send(websocket.Message{Type: websocket.TypeError, Error: "invalid_message_format"})
		return fmt.Errorf("invalid message format: %w", err)
	}

	switch msg.Type {
	case websocket.TypeStartQuiz:
		return h.registry.Start(client.ConnectionID)
	case websocket.TypeEndQuiz:
		h.registry.Stop(client.ConnectionID)
		return nil
	default:
		client.Send(websocket.Message{Type: websocket.TypeError, Error: fmt.Sprintf("unknown message type: %s", msg.Type)})
		return nil
	}
}
