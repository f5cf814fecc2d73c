package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Шаблоны инвалидации, не зависящие от ID
const (
	PatternSubjects       = "subjects:*"
	PatternChapters       = "chapters:*"
	PatternQuizzes        = "quizzes:*"
	PatternAllUserQuizzes = "user_quizzes:*"
	PatternUserStats      = "user_stats:*"
	KeySubjectsAll        = "subjects:all"
	KeyChaptersAll        = "chapters:all"
	KeyQuizzesAll         = "quizzes:all"
)

// TTLs - время жизни записей по типам ресурсов
type TTLs struct {
	Subjects  time.Duration
	Chapters  time.Duration
	Quizzes   time.Duration
	Dashboard time.Duration
	UserStats time.Duration
}

// DefaultTTLs возвращает TTL по умолчанию
func DefaultTTLs() TTLs {
	return TTLs{
		Subjects:  600 * time.Second,
		Chapters:  300 * time.Second,
		Quizzes:   300 * time.Second,
		Dashboard: 300 * time.Second,
		UserStats: 600 * time.Second,
	}
}

// ChaptersBySubjectKey - список разделов предмета
func ChaptersBySubjectKey(subjectID uint) string {
	return fmt.Sprintf("chapters:subject:%d", subjectID)
}

// ChaptersBySubjectPatterns покрывает ключ предмета и его производные (chapters:subject:<id>*),
// не задевая предметы с ID, начинающимся с тех же цифр.
func ChaptersBySubjectPatterns(subjectID uint) []string {
	key := ChaptersBySubjectKey(subjectID)
	return []string{key, key + ":*"}
}

// QuizzesByChapterKey - список викторин раздела
func QuizzesByChapterKey(chapterID uint) string {
	return fmt.Sprintf("quizzes:chapter:%d", chapterID)
}

// UserQuizzesKey - дашборд пользователя
func UserQuizzesKey(userID uint) string {
	return fmt.Sprintf("user_quizzes:%d", userID)
}

// UserQuizzesPatterns покрывает user_quizzes:<id>*
func UserQuizzesPatterns(userID uint) []string {
	key := UserQuizzesKey(userID)
	return []string{key, key + ":*"}
}

// MemoKey строит ключ вида "<name>:<md5(json(args))>"
func MemoKey(name string, args ...interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprint(args...))
	}
	sum := md5.Sum(data)
	return name + ":" + hex.EncodeToString(sum[:])
}
