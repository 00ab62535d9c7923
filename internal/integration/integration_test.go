package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	pginfra "livequiz-service/internal/infra/postgres"
	pgmigrations "livequiz-service/internal/infra/postgres/migrations"
	redisinfra "livequiz-service/internal/infra/redis"
)

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := redisinfra.NewQuizRepository(redisClient, pginfra.NewQuizLoader(pool), 5*time.Minute)
	store := redisinfra.NewSessionStore(redisClient, 5*time.Minute)
	archive := pginfra.NewResultArchive(pool)
	service := app.NewSessionService(store, quizRepo, app.Options{Archive: archive})

	created, err := service.CreateSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.State != domain.SessionCreated || created.Code == "" {
		t.Fatalf("unexpected session: %+v", created)
	}

	// The join code is claimed in Redis while the session is active.
	claimed, err := redisClient.Get(ctx, "session:code:"+created.Code).Result()
	if err != nil || claimed != created.ID {
		t.Fatalf("code key: got=%q err=%v", claimed, err)
	}

	if _, err := service.JoinByCode(created.Code, "alice"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := service.Join(created.ID, "bob"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	if err := service.StartQuiz(created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := service.SubmitAnswer(created.ID, "alice", "q1", "o2", 3)
	if err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if !result.Correct || result.TotalScore != 1 {
		t.Fatalf("alice result: %+v", result)
	}
	if _, err := service.SubmitAnswer(created.ID, "bob", "q1", "o1", 5); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	if err := service.EndQuiz(created.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	// Ending releases the join code for reuse.
	if err := redisClient.Get(ctx, "session:code:"+created.Code).Err(); err != goredis.Nil {
		t.Fatalf("expected code key gone, got %v", err)
	}

	// Results were archived to Postgres and survive without the live session.
	archived, err := archive.ListResults(ctx, created.ID)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected 2 archived results, got %d", len(archived))
	}
	byUser := map[string]domain.QuizResult{}
	for _, r := range archived {
		byUser[r.UserID] = r
	}
	if r := byUser["alice"]; r.Score != 1 || r.CorrectAnswers != 1 || r.TotalQuestions != 1 {
		t.Fatalf("alice archived: %+v", r)
	}
	if r := byUser["bob"]; r.Score != 0 || r.CorrectAnswers != 0 {
		t.Fatalf("bob archived: %+v", r)
	}

	// A service instance without the live session falls back to the archive.
	fresh := app.NewSessionService(redisinfra.NewSessionStore(redisClient, 5*time.Minute), quizRepo, app.Options{Archive: archive})
	recovered, err := fresh.Results(ctx, created.ID)
	if err != nil {
		t.Fatalf("results from archive: %v", err)
	}
	if len(recovered) != 2 {
		t.Fatalf("expected 2 recovered results, got %d", len(recovered))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "quiz-1",
		Title:       "Integration quiz",
		CreatedBy:   "teacher-1",
		IsPublished: true,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4"},
					{ID: "o3", Text: "5"},
				},
				CorrectOptionID: "o2",
				Points:          1,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
