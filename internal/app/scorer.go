package app

import "livequiz-service/internal/domain"

// ScoreAnswer grades a selected option against a question. It is a pure
// function: correct iff the selected id equals the question's correct option,
// points are the question's value (1 when unset) on a correct answer and 0
// otherwise.
func ScoreAnswer(q domain.Question, optionID string) (correct bool, points int) {
	if optionID != q.CorrectOptionID {
		return false, 0
	}
	points = q.Points
	if points == 0 {
		points = 1
	}
	return true, points
}

func hasOption(q domain.Question, optionID string) bool {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return true
		}
	}
	return false
}

// questionIndex returns the position of a question in the quiz, or -1.
func questionIndex(quiz domain.Quiz, questionID string) int {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}
