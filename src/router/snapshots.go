package router

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/services"
)

func handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			setWebErrorResponse("validation", models.NewWebError(400, "invalid limit", err), w)
			return
		}
		limit = v
	}

	snapshots, err := snapshotService.ListSnapshots(limit)
	if err != nil {
		setWebErrorResponse("handleSnapshots", err, w)
		return
	}

	if err := setResponse(snapshots, w); err != nil {
		log.Errorf("handleSnapshots: failed to set response: %v", err)
	}
}

// handleSnapshot takes a fresh snapshot of the named account and returns it.
func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	snapshot, err := snapshotService.TakeSnapshot(r.Context(), name)
	if err != nil {
		setWebErrorResponse("handleSnapshot", err, w)
		return
	}

	if err := setResponse(snapshot, w); err != nil {
		log.Errorf("handleSnapshot: failed to set response: %v", err)
	}
}

func handleSnapshotStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	snapshots, err := snapshotService.ListAccountSnapshots(name, 0)
	if err != nil {
		setWebErrorResponse("handleSnapshotStats", err, w)
		return
	}

	if len(snapshots) == 0 {
		setWebErrorResponse("handleSnapshotStats", models.NewWebError(404, "no snapshots for account", nil), w)
		return
	}

	equityStats, err := services.ComputeEquityStats(snapshots)
	if err != nil {
		setWebErrorResponse("handleSnapshotStats", models.NewWebError(500, "failed to compute stats", err), w)
		return
	}

	if err := setResponse(equityStats, w); err != nil {
		log.Errorf("handleSnapshotStats: failed to set response: %v", err)
	}
}
