package router

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/models"
)

func handleAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	broker, found := tradingService.Broker(name)
	if !found {
		setWebErrorResponse("handleAccount", models.NewWebError(404, "account not found", nil), w)
		return
	}

	account, err := broker.GetAccount(r.Context())
	if err != nil {
		setWebErrorResponse("handleAccount", models.NewWebError(502, "failed to fetch account", err), w)
		return
	}

	if err := setResponse(account, w); err != nil {
		log.Errorf("handleAccount: failed to set response: %v", err)
	}
}
