package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-authoring/internal/eventlog"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

type kindInfo struct {
	Kind     wizard.Kind         `json:"kind"`
	Label    string              `json:"label"`
	Editable bool                `json:"editable"`
	Editor   wizard.EditorSchema `json:"editor"`
}

// GET /kinds
func KindsHandler() http.HandlerFunc {
	kinds := wizard.Kinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		spec, _ := wizard.Lookup(k)
		out = append(out, kindInfo{Kind: k, Label: spec.Label(), Editable: spec.Editable(), Editor: spec.Editor()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /commands
func CommandsHandler() http.HandlerFunc {
	names := wizard.CommandNames()
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, names)
	}
}

// GET /events?q=&limit=
func EventsHandler(repo *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := repo.Recent(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, events)
	}
}
