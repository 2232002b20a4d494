package router

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/utils"
)

func handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !whitelisted(r) {
		log.Warnf("handleWebhook: rejected webhook from %s", utils.GetClientIP(r))
		setWebErrorResponse("whitelist", models.NewWebError(401, "IP not in whitelist", nil), w)
		return
	}

	vars := mux.Vars(r)
	name, found := vars["name"]
	if !found {
		setWebErrorResponse("validation", models.NewWebError(400, "missing account name", fmt.Errorf("could not find name in request params")), w)
		return
	}

	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		setWebErrorResponse("validation", models.NewWebError(400, "invalid payload", err), w)
		return
	}

	result, err := tradingService.ProcessWebhook(r.Context(), name, &order)
	if err != nil {
		setWebErrorResponse("handleWebhook", err, w)
		return
	}

	if err := setResponse(result, w); err != nil {
		log.Errorf("handleWebhook: failed to set response: %v", err)
	}
}
