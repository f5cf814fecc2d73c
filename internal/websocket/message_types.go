package websocket

// Типы входящих сообщений
const (
	// TypeStartQuiz запускает обратный отсчет для соединения
	TypeStartQuiz = "startquiz"

	// TypeEndQuiz останавливает обратный отсчет
	TypeEndQuiz = "endquiz"
)

// Типы исходящих сообщений
const (
	// TypeCountdown - очередное значение отсчета
	TypeCountdown = "countdown"

	// TypeError - ошибка обработки входящего сообщения
	TypeError = "error"
)

// Message - конверт сообщения в обе стороны
type Message struct {
	Type  string `json:"type"`
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
}
