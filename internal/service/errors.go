package service

import "errors"

// Ошибки сервисов, не являющиеся общими для всего приложения
var (
	// ErrInvalidCredentials - неверная пара username/пароль
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrQuizNotLive - ответ отправлен вне окна проведения викторины
	ErrQuizNotLive = errors.New("quiz is not live")
)
