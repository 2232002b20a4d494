package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/services"
	"github.com/jiaming2012/webhook-trader/src/utils"
)

var (
	tradingService  *services.TradingService
	snapshotService *services.SnapshotService
	orderStore      models.OrderStore
	ipWhitelist     map[string]struct{}
	queryDecoder    = schema.NewDecoder()
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("setResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// setWebErrorResponse maps a WebError onto its HTTP status; anything else is
// a 500.
func setWebErrorResponse(errType string, err error, w http.ResponseWriter) {
	statusCode := 500

	var webErr *models.WebError
	if errors.As(err, &webErr) {
		statusCode = webErr.StatusCode
		err = webErr
	}

	if respErr := setErrorResponse(errType, statusCode, err, w); respErr != nil {
		log.Errorf("%s: failed to set error response: %v", errType, respErr)
	}
}

// whitelisted gates webhook intake on the source IP.
func whitelisted(r *http.Request) bool {
	if len(ipWhitelist) == 0 {
		return true
	}

	_, found := ipWhitelist[utils.GetClientIP(r)]
	return found
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := orderStore.Ping(); err != nil {
		setWebErrorResponse("handleHealth", models.NewWebError(503, "database unreachable", err), w)
		return
	}

	if err := setResponse(map[string]string{"status": "ok"}, w); err != nil {
		log.Errorf("handleHealth: failed to set response: %v", err)
	}
}

// Setup registers all routes on the router.
func Setup(router *mux.Router, trading *services.TradingService, snapshots *services.SnapshotService, store models.OrderStore, whitelist []string) {
	tradingService = trading
	snapshotService = snapshots
	orderStore = store

	ipWhitelist = make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		ipWhitelist[ip] = struct{}{}
	}

	queryDecoder.IgnoreUnknownKeys(true)

	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.HandleFunc("/webhook/{name}", handleWebhook).Methods("POST")
	router.HandleFunc("/account/{name}", handleAccount).Methods("GET")
	router.HandleFunc("/snapshots", handleSnapshots).Methods("GET")
	router.HandleFunc("/snapshot/{name}", handleSnapshot).Methods("POST", "GET")
	router.HandleFunc("/snapshots/stats/{name}", handleSnapshotStats).Methods("GET")
	router.HandleFunc("/orders", handleOrders).Methods("GET")
	router.HandleFunc("/ws/orders", handleOrdersWs)
}
