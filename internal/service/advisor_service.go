package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrAdvisorDisabled возвращается выключенным советником
var ErrAdvisorDisabled = errors.New("advisor is disabled")

// weakTopicThreshold - средний балл по предмету, ниже которого предмет считается слабым
const weakTopicThreshold = 70.0

// StudentProfile - данные пользователя для советника
type StudentProfile struct {
	UserID uint
	Name   string
	Email  string
}

// QuizPerformance - результат одной викторины в снимке успеваемости
type QuizPerformance struct {
	QuizID      uint
	QuizTitle   string
	SubjectID   uint // 0 - без предмета
	SubjectName string
	Score       int
}

// PerformanceSnapshot - снимок успеваемости для напоминания
type PerformanceSnapshot struct {
	AverageScore   float64
	TotalQuizzes   int
	RecentScores   []int // Хронологически, старые первыми
	Trend          Trend
	DaysSinceVisit int
	Quizzes        []QuizPerformance
}

// FocusArea - викторина, на которую стоит обратить внимание
type FocusArea struct {
	Quiz    string
	Score   int
	Subject string
}

// Advice - рекомендации для блока советов в напоминании
type Advice struct {
	WeakTopics  []string
	Suggestions []string
	Motivation  string
	FocusAreas  []FocusArea
}

// Advisor формирует рекомендации. Любая ошибка означает "без блока советов".
type Advisor interface {
	GetAdvice(ctx context.Context, profile StudentProfile, snapshot PerformanceSnapshot) (*Advice, error)
}

// NoopAdvisor используется, когда советы выключены
type NoopAdvisor struct{}

func (a *NoopAdvisor) GetAdvice(ctx context.Context, profile StudentProfile, snapshot PerformanceSnapshot) (*Advice, error) {
	return nil, ErrAdvisorDisabled
}

// RuleBasedAdvisor строит рекомендации по простым правилам без внешних сервисов
type RuleBasedAdvisor struct{}

// NewAdvisor возвращает RuleBasedAdvisor или NoopAdvisor
func NewAdvisor(enabled bool) Advisor {
	if !enabled {
		return &NoopAdvisor{}
	}
	return &RuleBasedAdvisor{}
}

type subjectAggregate struct {
	name  string
	sum   int
	count int
}

// GetAdvice агрегирует результаты по ID предмета (имена могут совпадать)
func (a *RuleBasedAdvisor) GetAdvice(ctx context.Context, profile StudentProfile, snapshot PerformanceSnapshot) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	advice := &Advice{}

	bySubject := make(map[uint]*subjectAggregate)
	var order []uint
	for _, q := range snapshot.Quizzes {
		if q.SubjectID == 0 {
			continue
		}
		agg, ok := bySubject[q.SubjectID]
		if !ok {
			agg = &subjectAggregate{name: q.SubjectName}
			bySubject[q.SubjectID] = agg
			order = append(order, q.SubjectID)
		}
		agg.sum += q.Score
		agg.count++
	}
	for _, id := range order {
		agg := bySubject[id]
		if float64(agg.sum)/float64(agg.count) < weakTopicThreshold {
			advice.WeakTopics = append(advice.WeakTopics, agg.name)
		}
	}

	lowest := make([]QuizPerformance, len(snapshot.Quizzes))
	copy(lowest, snapshot.Quizzes)
	sort.SliceStable(lowest, func(i, j int) bool { return lowest[i].Score < lowest[j].Score })
	for i := 0; i < len(lowest) && i < 3; i++ {
		subject := lowest[i].SubjectName
		if subject == "" {
			subject = "General"
		}
		advice.FocusAreas = append(advice.FocusAreas, FocusArea{Quiz: lowest[i].QuizTitle, Score: lowest[i].Score, Subject: subject})
	}

	for _, topic := range advice.WeakTopics {
		advice.Suggestions = append(advice.Suggestions, fmt.Sprintf("Review the chapters of %s before the next quiz", topic))
	}
	if snapshot.DaysSinceVisit >= 3 {
		advice.Suggestions = append(advice.Suggestions, "Short daily sessions help more than rare long ones")
	}
	if snapshot.TotalQuizzes == 0 {
		advice.Suggestions = append(advice.Suggestions, "Take your first quiz to get personalised recommendations")
	}

	switch snapshot.Trend {
	case TrendImproving:
		advice.Motivation = "Your scores are going up. Keep the momentum!"
	case TrendDeclining:
		advice.Motivation = "A small dip is normal. One focused session can turn it around."
	case TrendStable:
		advice.Motivation = fmt.Sprintf("You are steady at %.0f%% on average. Time to push a little further.", snapshot.AverageScore)
	default:
		advice.Motivation = "Every quiz you take makes your progress easier to track."
	}

	return advice, nil
}
