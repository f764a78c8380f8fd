package server

import (
	"net/http"

	"github.com/foodscope/foodscope/internal/utils"
	"github.com/foodscope/foodscope/pkg/resolver"
	"github.com/foodscope/foodscope/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Resolver *resolver.Resolver
	Username string
	Password string
}

func New(db *storage.DB, res *resolver.Resolver, user, pass string) *Server {
	return &Server{
		DB:       db,
		Resolver: res,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler builds the route table. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/products/{barcode}", s.basicAuth(s.handleGetProduct))
	mux.HandleFunc("GET /api/search", s.basicAuth(s.handleSearch))
	mux.HandleFunc("POST /api/products", s.basicAuth(s.handleAddProduct))
	mux.HandleFunc("GET /api/recent", s.basicAuth(s.handleRecent))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
