package main

import (
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	cellite "github.com/SourceRegistry/cel-lite"
	"github.com/SourceRegistry/cel-lite/internal/httpapi"
	"github.com/SourceRegistry/cel-lite/internal/observability"
	"github.com/SourceRegistry/cel-lite/internal/policyengine"
)

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func main() {
	godotenv.Load()
	observability.Init(os.Getenv("LOG_LEVEL"), os.Getenv("ENV") != "production")
	log := observability.L()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	failClosed := true
	if v := os.Getenv("FAIL_CLOSED"); v == "false" || v == "0" {
		failClosed = false
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}

	defaults := cellite.DefaultOptions()
	opts := cellite.Options{
		MaxExpressionLength: envInt("POLICY_MAX_EXPRESSION_LENGTH", defaults.MaxExpressionLength),
		MaxAstNodes:         envInt("POLICY_MAX_AST_NODES", defaults.MaxAstNodes),
		MaxCallDepth:        envInt("POLICY_MAX_CALL_DEPTH", defaults.MaxCallDepth),
		MaxTraceEntries:     envInt("POLICY_MAX_TRACE_ENTRIES", defaults.MaxTraceEntries),
	}
	eng := policyengine.New(db, opts, failClosed)

	mux := http.NewServeMux()
	mux.Handle("/evaluate", &httpapi.EvalHandler{Engine: eng})
	mux.HandleFunc("/policies", func(w http.ResponseWriter, r *http.Request) {
		h := &httpapi.PolicyHandler{DB: db, Engine: eng}
		switch r.Method {
		case http.MethodPost:
			h.Create(w, r)
		case http.MethodGet:
			h.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/policies/", func(w http.ResponseWriter, r *http.Request) {
		h := &httpapi.PolicyHandler{DB: db, Engine: eng}
		if r.URL.Path == "/policies/" {
			switch r.Method {
			case http.MethodPost:
				h.Create(w, r)
			case http.MethodGet:
				h.List(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.Get(w, r)
		case http.MethodPut:
			h.Update(w, r)
		case http.MethodDelete:
			h.Delete(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Infow("listening", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
