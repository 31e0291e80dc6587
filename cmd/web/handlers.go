package main

import (
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/duplas/internal/httputil"
	"github.com/AdamBeresnev/duplas/internal/middleware"
	"github.com/AdamBeresnev/duplas/internal/service"
	"github.com/AdamBeresnev/duplas/internal/utils"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type app struct {
	sessionManager *scs.SessionManager

	players       *service.PlayerService
	tournaments   *service.TournamentService
	registrations *service.RegistrationService
	rounds        *service.RoundService
	tables        *service.TableService
	standings     *service.StandingsService
	access        *service.AccessService
}

func respond(w http.ResponseWriter, status int, data any) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		httputil.InternalServerError(w, "Failed to write response", err)
	}
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}

// allowedFor lets viewers act on their own registration and the organizer on anyone's.
func (a *app) allowedFor(w http.ResponseWriter, r *http.Request, tournamentID, playerID uuid.UUID) bool {
	viewerID := middleware.ViewerID(r.Context())
	if playerID == viewerID {
		return true
	}
	if err := a.access.RequireOrganizer(r.Context(), service.ScopeTournament, tournamentID, viewerID); err != nil {
		httputil.Error(w, "Access denied", err)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.ReadJSON(w, r, dst, false); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return false
	}
	return true
}

// Session

type sessionRequest struct {
	Username string `json:"username"`
}

func (a *app) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.players.EnsurePlayer(r.Context(), req.Username)
	if err != nil {
		httputil.Error(w, "Failed to select player", err)
		return
	}
	if err := middleware.SignIn(r.Context(), a.sessionManager, p.ID); err != nil {
		httputil.InternalServerError(w, "Failed to renew session", err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (a *app) getSession(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, middleware.Viewer(r.Context()))
}

func (a *app) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := middleware.SignOut(r.Context(), a.sessionManager); err != nil {
		httputil.InternalServerError(w, "Failed to end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tournaments

func (a *app) listTournaments(w http.ResponseWriter, r *http.Request) {
	list, err := a.tournaments.ListTournaments(r.Context())
	if err != nil {
		httputil.Error(w, "Failed to list tournaments", err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (a *app) createTournament(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTournamentInput
	if !decode(w, r, &in) {
		return
	}
	t, err := a.tournaments.CreateTournament(r.Context(), middleware.ViewerID(r.Context()), in)
	if err != nil {
		httputil.Error(w, "Failed to create tournament", err)
		return
	}
	respond(w, http.StatusCreated, t)
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	ov, err := a.tournaments.Overview(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get tournament", err)
		return
	}
	respond(w, http.StatusOK, ov)
}

func (a *app) startTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	round, err := a.tournaments.StartTournament(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to start tournament", err)
		return
	}
	respond(w, http.StatusOK, round)
}

func (a *app) cancelTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	if err := a.tournaments.CancelTournament(r.Context(), id); err != nil {
		httputil.Error(w, "Failed to cancel tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) advanceRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	round, err := a.tournaments.AdvanceRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to advance round", err)
		return
	}
	respond(w, http.StatusCreated, round)
}

func (a *app) finalizeTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	res, err := a.tournaments.FinalizeTournament(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to finalize tournament", err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (a *app) getStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	var round *int
	if raw := r.URL.Query().Get("round"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.BadRequest(w, "Invalid round number", err)
			return
		}
		round = utils.Ptr(n)
	}
	st, err := a.standings.GetStandings(r.Context(), id, round)
	if err != nil {
		httputil.Error(w, "Failed to get standings", err)
		return
	}
	respond(w, http.StatusOK, st)
}

func (a *app) resolveView(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	view, err := a.standings.ResolveView(r.Context(), id, middleware.ViewerID(r.Context()))
	if err != nil {
		httputil.Error(w, "Failed to resolve view", err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (a *app) listRounds(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	rounds, err := a.rounds.ListRounds(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to list rounds", err)
		return
	}
	respond(w, http.StatusOK, rounds)
}

// Registrations

type registrationRequest struct {
	// Defaults to the viewer.
	PlayerID *uuid.UUID `json:"player_id"`
}

func (a *app) listRegistrations(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	list, err := a.registrations.ListRegistrations(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to list registrations", err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (a *app) register(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	var req registrationRequest
	if err := httputil.ReadJSON(w, r, &req, true); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	playerID := middleware.ViewerID(r.Context())
	if req.PlayerID != nil {
		playerID = *req.PlayerID
	}
	if !a.allowedFor(w, r, id, playerID) {
		return
	}
	reg, err := a.registrations.Register(r.Context(), id, playerID)
	if err != nil {
		httputil.Error(w, "Failed to register", err)
		return
	}
	respond(w, http.StatusCreated, reg)
}

func (a *app) unregister(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	playerID, ok := urlID(w, r, "playerID")
	if !ok {
		return
	}
	if !a.allowedFor(w, r, id, playerID) {
		return
	}
	if err := a.registrations.Unregister(r.Context(), id, playerID); err != nil {
		httputil.Error(w, "Failed to unregister", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tournamentID")
	if !ok {
		return
	}
	playerID, ok := urlID(w, r, "playerID")
	if !ok {
		return
	}
	if !a.allowedFor(w, r, id, playerID) {
		return
	}
	reg, err := a.registrations.Reactivate(r.Context(), id, playerID)
	if err != nil {
		httputil.Error(w, "Failed to reactivate registration", err)
		return
	}
	respond(w, http.StatusOK, reg)
}

// Rounds

func (a *app) getRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	round, err := a.rounds.GetRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get round", err)
		return
	}
	respond(w, http.StatusOK, round)
}

func (a *app) listTables(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	tables, err := a.rounds.ListTables(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to list tables", err)
		return
	}
	respond(w, http.StatusOK, tables)
}

func (a *app) pairRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	tables, err := a.rounds.PairRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to pair round", err)
		return
	}
	respond(w, http.StatusOK, tables)
}

func (a *app) repairRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	tables, err := a.rounds.RepairRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to re-pair round", err)
		return
	}
	respond(w, http.StatusOK, tables)
}

func (a *app) startRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	round, err := a.rounds.StartRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to start round", err)
		return
	}
	respond(w, http.StatusOK, round)
}

func (a *app) finishRound(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	round, err := a.rounds.FinishRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to finish round", err)
		return
	}
	respond(w, http.StatusOK, round)
}

func (a *app) listOverflow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	over, err := a.rounds.ListOverflow(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to list overflow", err)
		return
	}
	respond(w, http.StatusOK, over)
}

func (a *app) myTable(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	table, err := a.rounds.MyTable(r.Context(), id, middleware.ViewerID(r.Context()))
	if err != nil {
		httputil.Error(w, "Failed to find table", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) addTable(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roundID")
	if !ok {
		return
	}
	table, err := a.tables.AddTable(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to add table", err)
		return
	}
	respond(w, http.StatusCreated, table)
}

// Tables

type seatRequest struct {
	PlayerID     uuid.UUID `json:"player_id"`
	ToTableID    uuid.UUID `json:"to_table_id"`
	WithPlayerID uuid.UUID `json:"with_player_id"`
}

func (a *app) reportResult(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var in service.ResultInput
	if !decode(w, r, &in) {
		return
	}
	table, err := a.tables.ReportResult(r.Context(), id, in)
	if err != nil {
		httputil.Error(w, "Failed to report result", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) editResult(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var in service.ResultInput
	if !decode(w, r, &in) {
		return
	}
	table, err := a.tables.EditResult(r.Context(), id, in)
	if err != nil {
		httputil.Error(w, "Failed to edit result", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) reopenResult(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	table, err := a.tables.ReopenResult(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to reopen result", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) moveSeat(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var req seatRequest
	if !decode(w, r, &req) {
		return
	}
	tables, err := a.tables.MoveSeat(r.Context(), id, req.ToTableID, req.PlayerID)
	if err != nil {
		httputil.Error(w, "Failed to move seat", err)
		return
	}
	respond(w, http.StatusOK, tables)
}

func (a *app) swapSide(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var req seatRequest
	if !decode(w, r, &req) {
		return
	}
	table, err := a.tables.SwapSide(r.Context(), id, req.PlayerID, req.WithPlayerID)
	if err != nil {
		httputil.Error(w, "Failed to swap side", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) seatPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var req seatRequest
	if !decode(w, r, &req) {
		return
	}
	table, err := a.tables.SeatPlayer(r.Context(), id, req.PlayerID)
	if err != nil {
		httputil.Error(w, "Failed to seat player", err)
		return
	}
	respond(w, http.StatusOK, table)
}

func (a *app) benchPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	var req seatRequest
	if !decode(w, r, &req) {
		return
	}
	bye, err := a.tables.BenchPlayer(r.Context(), id, req.PlayerID)
	if err != nil {
		httputil.Error(w, "Failed to bench player", err)
		return
	}
	respond(w, http.StatusOK, bye)
}

func (a *app) removeTable(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tableID")
	if !ok {
		return
	}
	if err := a.tables.RemoveTable(r.Context(), id); err != nil {
		httputil.Error(w, "Failed to remove table", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
