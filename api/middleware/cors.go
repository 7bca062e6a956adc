package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the member-facing frontends to call the API with credentials.
// Origins are fixed rather than configurable; a new frontend deployment is a
// code change, not an env tweak.
func CORS() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000", // local dev
			"https://hq.kickoffclub.com",
			"https://kickoff-club-hq.vercel.app",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	return cors.New(opts).Handler
}
