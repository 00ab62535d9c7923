package app

import (
	"math"
	"testing"

	"livequiz-service/internal/domain"
)

func statsQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:              "q1",
				Text:            "first",
				Options:         []domain.Option{{ID: "o1"}, {ID: "o2"}, {ID: "o3"}},
				CorrectOptionID: "o2",
			},
			{
				ID:              "q2",
				Text:            "second",
				Options:         []domain.Option{{ID: "o1"}, {ID: "o2"}},
				CorrectOptionID: "o1",
			},
		},
	}
}

func TestStatsDistributionSumsToHundred(t *testing.T) {
	acc := newStatsAccumulator()
	acc.foldAnswer(domain.ParticipantAnswer{QuestionID: "q1", SelectedOptionID: "o2", Correct: true, TimeSpent: 4})
	acc.foldAnswer(domain.ParticipantAnswer{QuestionID: "q1", SelectedOptionID: "o1", Correct: false, TimeSpent: 8})

	stats := acc.snapshot(statsQuiz())
	q1 := stats.QuestionsStats[0]

	if q1.CorrectPercentage != 50 {
		t.Fatalf("expected 50%% correct, got %v", q1.CorrectPercentage)
	}
	if q1.AverageTimeSpent != 6 {
		t.Fatalf("expected average time 6, got %v", q1.AverageTimeSpent)
	}

	sum := 0.0
	for _, pct := range q1.OptionDistribution {
		sum += pct
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("expected distribution summing to 100, got %v (%v)", sum, q1.OptionDistribution)
	}
	if q1.OptionDistribution["o3"] != 0 {
		t.Fatalf("expected unpicked option at 0, got %v", q1.OptionDistribution["o3"])
	}
}

func TestStatsZeroAnswersReportZero(t *testing.T) {
	stats := newStatsAccumulator().snapshot(statsQuiz())

	for _, qs := range stats.QuestionsStats {
		if qs.CorrectPercentage != 0 || qs.AverageTimeSpent != 0 {
			t.Fatalf("expected zeroed stats for unanswered question, got %+v", qs)
		}
		for optionID, pct := range qs.OptionDistribution {
			if pct != 0 {
				t.Fatalf("expected 0%% for option %s, got %v", optionID, pct)
			}
		}
	}
	if stats.AverageScore != 0 || stats.TotalParticipants != 0 {
		t.Fatalf("expected empty score stats, got %+v", stats)
	}
}

func TestStatsScoreAggregates(t *testing.T) {
	acc := newStatsAccumulator()
	acc.foldScore(3)
	acc.foldScore(1)
	acc.foldScore(5)

	stats := acc.snapshot(statsQuiz())
	if stats.AverageScore != 3 || stats.HighestScore != 5 || stats.LowestScore != 1 {
		t.Fatalf("unexpected score stats: %+v", stats)
	}
	if stats.TotalParticipants != 3 {
		t.Fatalf("expected 3 participants, got %d", stats.TotalParticipants)
	}
}

func TestStatsMerge(t *testing.T) {
	a := newStatsAccumulator()
	a.foldScore(2)
	a.foldAnswer(domain.ParticipantAnswer{QuestionID: "q1", SelectedOptionID: "o2", Correct: true})

	b := newStatsAccumulator()
	b.foldScore(4)
	b.foldAnswer(domain.ParticipantAnswer{QuestionID: "q1", SelectedOptionID: "o1", Correct: false})

	a.merge(b)
	stats := a.snapshot(statsQuiz())

	if stats.TotalParticipants != 2 || stats.HighestScore != 4 || stats.LowestScore != 2 {
		t.Fatalf("unexpected merged score stats: %+v", stats)
	}
	if stats.QuestionsStats[0].CorrectPercentage != 50 {
		t.Fatalf("expected 50%% after merge, got %v", stats.QuestionsStats[0].CorrectPercentage)
	}
}
