package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// ResultArchive persists final QuizResults so they outlive the in-memory
// session. Rows are insert-only; results are immutable once written.
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

func (a *ResultArchive) SaveResults(ctx context.Context, sessionID string, results []domain.QuizResult) error {
	for _, res := range results {
		_, err := a.pool.Exec(ctx, `
			INSERT INTO quiz_results (id, session_id, quiz_id, user_id, score, total_questions, correct_answers, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			res.ID, sessionID, res.QuizID, res.UserID, res.Score, res.TotalQuestions, res.CorrectAnswers, res.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("save result for %s: %w", res.UserID, err)
		}
	}
	return nil
}

func (a *ResultArchive) ListResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, session_id, quiz_id, user_id, score, total_questions, correct_answers, completed_at
		FROM quiz_results WHERE session_id=$1 ORDER BY completed_at, user_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizResult
	for rows.Next() {
		var res domain.QuizResult
		if err := rows.Scan(&res.ID, &res.SessionID, &res.QuizID, &res.UserID, &res.Score, &res.TotalQuestions, &res.CorrectAnswers, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
