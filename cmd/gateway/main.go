package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	api "github.com/langprep/langprep/internal/api/http"
	"github.com/langprep/langprep/internal/audit"
	auth "github.com/langprep/langprep/internal/auth/middleware"
	"github.com/langprep/langprep/internal/config"
	"github.com/langprep/langprep/internal/content"
	"github.com/langprep/langprep/internal/db"
	"github.com/langprep/langprep/internal/rbac"
	"github.com/langprep/langprep/internal/storage"
	"github.com/langprep/langprep/internal/submission"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := seedAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	contentSvc := content.NewService(content.NewSQLStore(dbh, cfg.DBDriver))
	events := audit.NewEventRepo(dbh)
	subSvc := submission.NewService(
		submission.NewSQLStore(dbh, cfg.DBDriver),
		contentSvc,
		submission.WithRecorder(events),
		submission.WithSinglePolicy(cfg.SingleSubmission),
	)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT -> subject+role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, bs)
		})

		// Content authoring (admin-only)
		pr.With(rbac.Require("test:create")).Post("/tests", api.CreateTestHandler(contentSvc))
		pr.With(rbac.Require("test:delete")).Delete("/tests/{testID}", api.DeleteTestHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Put("/tests/{testID}/sections/{sectionID}", api.AddSectionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Delete("/tests/{testID}/sections/{sectionID}", api.RemoveSectionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Post("/tests/{testID}/reorder", api.ReorderSectionsHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Post("/sections", api.CreateSectionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Put("/sections/{sectionID}/questions/{questionID}", api.AddQuestionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Delete("/sections/{sectionID}/questions/{questionID}", api.RemoveQuestionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Post("/sections/{sectionID}/reorder", api.ReorderQuestionsHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Get("/sections/{sectionID}/validate", api.ValidateSectionHandler(contentSvc))
		pr.With(rbac.Require("test:edit")).Post("/questions", api.CreateQuestionHandler(contentSvc))

		// Learner-facing content
		pr.With(rbac.Require("test:view")).Get("/tests", api.ListTestsHandler(contentSvc))
		pr.With(rbac.Require("test:view")).Get("/tests/{testID}", api.GetTestHandler(contentSvc))

		// Submission lifecycle
		pr.With(rbac.Require("submission:create")).Post("/tests/{testID}/submissions", api.SubmitHandler(subSvc))
		pr.With(rbac.Require("submission:grade")).Post("/submissions/{submissionID}/grade", api.GradeHandler(subSvc))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(subSvc))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions", api.ListSubmissionsHandler(subSvc))

		// Dashboards (admin-only)
		pr.With(rbac.Require("stats:view")).Get("/stats", api.GetStatsHandler(subSvc))
		pr.With(rbac.Require("stats:view")).Post("/stats/distribution", api.DistributionHandler(subSvc))
		pr.With(rbac.Require("stats:view")).Get("/stats/activity", api.RecentActivityHandler(subSvc))

		// Accounts (admin-only)
		pr.With(rbac.Require("users:manage")).Post("/users", api.CreateUserHandler(dbh))
		pr.With(rbac.Require("users:manage")).Get("/users", api.ListUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin makes sure an admin account exists so a fresh deployment can
// log in. No-op when the hash is unset or the user is already present.
func seedAdmin(ctx context.Context, dbh *sql.DB, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	var exists int
	err := dbh.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id,username,password_hash,role) VALUES ($1,$2,$3,'admin')`,
		uuid.NewString(), username, passHash)
	return err
}
