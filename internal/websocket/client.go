package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Отсчет отправляет одно сообщение в секунду, большой буфер не нужен
	defaultClientBufferSize = 16
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler обрабатывает входящее сообщение. Ошибка закрывает соединение.
type MessageHandler func(message []byte, client *Client) error

// Client является посредником между WebSocket соединением и реестром сессий.
type Client struct {
	// ID пользователя из JWT
	UserID uint

	// Уникальный ID соединения, ключ в SessionRegistry
	ConnectionID string

	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// sendMu защищает закрытие send от конкурентной отправки из горутины отсчета
	sendMu     sync.Mutex
	sendClosed bool
}

// NewClient создает нового клиента
func NewClient(conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID:       userID,
		ConnectionID: uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
	}
}

// ID возвращает ID соединения
func (c *Client) ID() string {
	return c.ConnectionID
}

// Send ставит сообщение в очередь на отправку.
// Возвращает false, если соединение закрыто или буфер переполнен.
func (c *Client) Send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WebSocket] Ошибка сериализации сообщения %s: %v", msg.Type, err)
		return false
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("[WebSocket] Буфер переполнен (UserID: %d, ConnID: %s), сообщение %s отброшено", c.UserID, c.ConnectionID, msg.Type)
		return false
	}
}

// CloseSend закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	c.sendClosed = true
	close(c.send)
	return true
}

// StartPumps запускает горутины чтения и записи. onClose вызывается ровно один раз
// после завершения чтения, до закрытия канала send.
func (c *Client) StartPumps(handler MessageHandler, onClose func(*Client)) {
	go c.writePump()
	go c.readPump(handler, onClose)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(handler MessageHandler, onClose func(*Client)) {
	defer func() {
		log.Printf("[WebSocket] Read pump остановлен (UserID: %d, ConnID: %s)", c.UserID, c.ConnectionID)
		if onClose != nil {
			onClose(c)
		}
		c.CloseSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Ошибка чтения (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}
			return
		}

		if handlerErr := safeHandleMessage(message, c, handler); handlerErr != nil {
			log.Printf("[WebSocket] Ошибка обработчика (UserID: %d, ConnID: %s): %v. Соединение закрывается.", c.UserID, c.ConnectionID, handlerErr)
			return
		}
	}
}

// safeHandleMessage вызывает обработчик с recover. Паника считается фатальной для соединения.
func safeHandleMessage(message []byte, client *Client, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] PANIC в обработчике (UserID: %d, ConnID: %s): %v\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	if handler == nil {
		return nil
	}
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	return handler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Ошибка записи (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
