package router

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/models"
)

func handleOrders(w http.ResponseWriter, r *http.Request) {
	var filter models.OrderFilter
	if err := queryDecoder.Decode(&filter, r.URL.Query()); err != nil {
		setWebErrorResponse("validation", models.NewWebError(400, "invalid query parameters", err), w)
		return
	}

	orders, err := orderStore.ListOrders(filter)
	if err != nil {
		setWebErrorResponse("handleOrders", models.NewWebError(500, "failed to list orders", err), w)
		return
	}

	if err := setResponse(orders, w); err != nil {
		log.Errorf("handleOrders: failed to set response: %v", err)
	}
}
