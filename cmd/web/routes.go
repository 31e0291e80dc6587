package main

import (
	"net/http"

	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/middleware"
	"github.com/AdamBeresnev/duplas/internal/service"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func newRouter(a *app, playerStore *store.PlayerStore, ws *live.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// The websocket stays outside the session middleware, which buffers the response.
	r.Get("/ws/tournaments/{tournamentID}", ws.ServeWs)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(a.sessionManager.LoadAndSave)
		r.Use(middleware.LoadViewer(a.sessionManager, playerStore))

		r.Route("/api", func(r chi.Router) {
			r.Post("/session", a.createSession)
			r.With(middleware.RequireViewer).Get("/session", a.getSession)
			r.Delete("/session", a.deleteSession)

			// Reads are open to spectators; changes need a selected player.
			r.Get("/tournaments", a.listTournaments)
			r.With(middleware.RequireViewer).Post("/tournaments", a.createTournament)

			r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
				r.Get("/", a.getTournament)
				r.Get("/standings", a.getStandings)
				r.Get("/view", a.resolveView)
				r.Get("/rounds", a.listRounds)
				r.Get("/registrations", a.listRegistrations)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireViewer)
					// Players manage their own registration; the organizer manages anyone's.
					r.Post("/registrations", a.register)
					r.Delete("/registrations/{playerID}", a.unregister)
					r.Post("/registrations/{playerID}/reactivate", a.reactivate)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireOrganizer(a.access, service.ScopeTournament, "tournamentID"))
						r.Post("/start", a.startTournament)
						r.Post("/cancel", a.cancelTournament)
						r.Post("/advance", a.advanceRound)
						r.Post("/finalize", a.finalizeTournament)
					})
				})
			})

			r.Route("/rounds/{roundID}", func(r chi.Router) {
				r.Get("/", a.getRound)
				r.Get("/tables", a.listTables)
				r.Get("/overflow", a.listOverflow)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireViewer)
					r.Get("/my-table", a.myTable)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireOrganizer(a.access, service.ScopeRound, "roundID"))
						r.Post("/pair", a.pairRound)
						r.Post("/repair", a.repairRound)
						r.Post("/start", a.startRound)
						r.Post("/finish", a.finishRound)
						r.Post("/tables", a.addTable)
					})
				})
			})

			r.Route("/tables/{tableID}", func(r chi.Router) {
				r.Use(middleware.RequireViewer)
				r.With(middleware.RequireReporter(a.access, "tableID")).Post("/result", a.reportResult)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOrganizer(a.access, service.ScopeTable, "tableID"))
					r.Put("/result", a.editResult)
					r.Post("/reopen", a.reopenResult)
					r.Post("/move", a.moveSeat)
					r.Post("/swap", a.swapSide)
					r.Post("/seat", a.seatPlayer)
					r.Post("/bench", a.benchPlayer)
					r.Delete("/", a.removeTable)
				})
			})
		})
	})

	return r
}
