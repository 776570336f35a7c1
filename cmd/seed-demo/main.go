package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/database"
	"github.com/stemsi/classpulse-backend/internal/logger"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/repository"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/session"
)

func main() {
	var teacherID, section string
	var start bool
	flag.StringVar(&teacherID, "teacher", "teacher-demo", "Teacher ID that owns the seeded data")
	flag.StringVar(&section, "section", "XII-TKJ-2", "Section the sessions are restricted to")
	flag.BoolVar(&start, "start", false, "Start the seeded sessions immediately")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	store := repository.NewStore(sessionRepo, questionRepo, responseRepo, rdb, cfg.SessionCodeTTL, log)
	bus := repository.NewMonitorRepository(rdb)

	questionService := service.NewQuestionService(questionRepo, log)
	sessionService := service.NewSessionService(sessionRepo, questionRepo, responseRepo, store, bus, session.SystemClock(), log)

	fmt.Println("=== Seeding demo question bank ===")

	feedback := []model.AddQuestionRequest{
		{Kind: "FEEDBACK", QuestionText: "How clear was today's lesson?", Type: "RATING", Options: []string{"1", "2", "3", "4", "5"}, IsRequired: true},
		{Kind: "FEEDBACK", QuestionText: "Did you understand the subnetting example?", Type: "UNDERSTOOD", IsRequired: true},
		{Kind: "FEEDBACK", QuestionText: "Which part should we revisit?", Type: "MCQ", Options: []string{"IPv4 classes", "CIDR", "VLSM"}},
		{Kind: "FEEDBACK", QuestionText: "Anything else you want to tell the teacher?", Type: "TEXT"},
	}
	quiz := []model.AddQuestionRequest{
		{Kind: "QUIZ", QuestionText: "How many usable hosts does a /30 network have?", Type: "MCQ", Options: []string{"2", "4", "6"}, CorrectAnswer: "2", Marks: 2, IsRequired: true},
		{Kind: "QUIZ", QuestionText: "A MAC address is 48 bits long.", Type: "TRUE_FALSE", CorrectAnswer: "True", Marks: 1, IsRequired: true},
		{Kind: "QUIZ", QuestionText: "Which are private IPv4 ranges?", Type: "MULTIPLE_CORRECT", Options: []string{"10.0.0.0/8", "172.16.0.0/12", "8.8.8.0/24"}, CorrectAnswer: "10.0.0.0/8;172.16.0.0/12", Marks: 3},
		{Kind: "QUIZ", QuestionText: "Name the protocol that resolves IP to MAC addresses.", Type: "ONE_WORD", CorrectAnswer: "ARP", Marks: 2},
	}

	seed := func(title string, kind model.SessionKind, reqs []model.AddQuestionRequest, duration int) {
		var ids []string
		req := &model.CreateSessionRequest{Title: title, Kind: string(kind), Section: section, DurationSeconds: duration}
		for i := range reqs {
			q, err := questionService.Add(ctx, teacherID, &reqs[i])
			if err != nil {
				log.Fatal().Err(err).Str("question", reqs[i].QuestionText).Msg("Failed to add question")
			}
			req.QuestionIDs = append(req.QuestionIDs, q.ID)
			ids = append(ids, q.ID.String())
		}

		sess, err := sessionService.Create(ctx, teacherID, req)
		if err != nil {
			log.Fatal().Err(err).Str("title", title).Msg("Failed to create session")
		}
		if start {
			if sess, err = sessionService.Start(ctx, teacherID, sess.ID); err != nil {
				log.Fatal().Err(err).Str("title", title).Msg("Failed to start session")
			}
		}
		fmt.Printf("%-8s %-32s code=%s status=%s questions=%d\n", kind, title, sess.Code, sess.Status, len(ids))
	}

	seed("Networking lesson feedback", model.SessionKindFeedback, feedback, 600)
	seed("Networking basics quiz", model.SessionKindQuiz, quiz, 900)

	fmt.Println("Done.")
}
