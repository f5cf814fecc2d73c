package service

// Trend - направление изменения результатов
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// MonthlyTrendDeadband - зона нечувствительности для месячного тренда (в процентных пунктах)
const MonthlyTrendDeadband = 5.0

// halfAverages делит ряд пополам (при нечетной длине лишняя точка уходит во вторую половину)
func halfAverages(values []int) (first, second float64) {
	mid := len(values) / 2
	var sumFirst, sumSecond int
	for _, v := range values[:mid] {
		sumFirst += v
	}
	for _, v := range values[mid:] {
		sumSecond += v
	}
	return float64(sumFirst) / float64(mid), float64(sumSecond) / float64(len(values)-mid)
}

// ClassifyTrend сравнивает средние первой и второй половины хронологического ряда.
// Разница в пределах deadband считается стабильностью; меньше двух точек - недостаточно данных.
func ClassifyTrend(values []int, deadband float64) Trend {
	if len(values) < 2 {
		return TrendInsufficientData
	}
	first, second := halfAverages(values)
	switch {
	case second > first+deadband:
		return TrendImproving
	case second < first-deadband:
		return TrendDeclining
	default:
		return TrendStable
	}
}
