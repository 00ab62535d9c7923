package app

import "livequiz-service/internal/domain"

// statsAccumulator keeps running sums so each new answer folds in O(1).
// Percentages are derived only at snapshot time to avoid rounding drift.
type statsAccumulator struct {
	scoreCount int
	scoreSum   int
	highScore  int
	lowScore   int
	questions  map[string]*questionTally
}

type questionTally struct {
	total   int
	correct int
	timeSum float64
	options map[string]int
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{questions: make(map[string]*questionTally)}
}

func (a *statsAccumulator) foldAnswer(ans domain.ParticipantAnswer) {
	t := a.questions[ans.QuestionID]
	if t == nil {
		t = &questionTally{options: make(map[string]int)}
		a.questions[ans.QuestionID] = t
	}
	t.total++
	if ans.Correct {
		t.correct++
	}
	t.timeSum += ans.TimeSpent
	t.options[ans.SelectedOptionID]++
}

// foldScore records one completed participant's final score.
func (a *statsAccumulator) foldScore(score int) {
	if a.scoreCount == 0 || score > a.highScore {
		a.highScore = score
	}
	if a.scoreCount == 0 || score < a.lowScore {
		a.lowScore = score
	}
	a.scoreCount++
	a.scoreSum += score
}

// merge folds another accumulator into this one (used for per-quiz stats
// spanning several sessions of the same quiz).
func (a *statsAccumulator) merge(other *statsAccumulator) {
	if other.scoreCount > 0 {
		if a.scoreCount == 0 || other.highScore > a.highScore {
			a.highScore = other.highScore
		}
		if a.scoreCount == 0 || other.lowScore < a.lowScore {
			a.lowScore = other.lowScore
		}
		a.scoreCount += other.scoreCount
		a.scoreSum += other.scoreSum
	}
	for questionID, src := range other.questions {
		dst := a.questions[questionID]
		if dst == nil {
			dst = &questionTally{options: make(map[string]int)}
			a.questions[questionID] = dst
		}
		dst.total += src.total
		dst.correct += src.correct
		dst.timeSum += src.timeSum
		for optionID, n := range src.options {
			dst.options[optionID] += n
		}
	}
}

func (a *statsAccumulator) clone() *statsAccumulator {
	out := newStatsAccumulator()
	out.merge(a)
	return out
}

// snapshot materializes a QuizStats value. Question order and option sets come
// from the quiz so every option appears in the distribution even with zero
// picks; a question with no answers reports 0 everywhere instead of dividing
// by zero.
func (a *statsAccumulator) snapshot(quiz domain.Quiz) domain.QuizStats {
	stats := domain.QuizStats{
		TotalParticipants: a.scoreCount,
		QuestionsStats:    make([]domain.QuestionStat, 0, len(quiz.Questions)),
	}
	if a.scoreCount > 0 {
		stats.AverageScore = float64(a.scoreSum) / float64(a.scoreCount)
		stats.HighestScore = a.highScore
		stats.LowestScore = a.lowScore
	}

	for _, q := range quiz.Questions {
		stat := domain.QuestionStat{
			QuestionID:         q.ID,
			QuestionText:       q.Text,
			OptionDistribution: make(map[string]float64, len(q.Options)),
		}
		tally := a.questions[q.ID]
		for _, opt := range q.Options {
			stat.OptionDistribution[opt.ID] = 0
		}
		if tally != nil && tally.total > 0 {
			stat.TotalAnswers = tally.total
			stat.CorrectPercentage = float64(tally.correct) / float64(tally.total) * 100
			stat.AverageTimeSpent = tally.timeSum / float64(tally.total)
			for optionID, n := range tally.options {
				stat.OptionDistribution[optionID] = float64(n) / float64(tally.total) * 100
			}
		}
		stats.QuestionsStats = append(stats.QuestionsStats, stat)
	}
	return stats
}
