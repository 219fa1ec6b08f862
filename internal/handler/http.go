package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// InvocationsPath is where the Lambda runtime interface emulator accepts events,
// so the local server can be driven with the same payloads as the deployed function.
const InvocationsPath = "/2015-03-31/functions/function/invocations"

var _ http.Handler = (*CounterHandler)(nil)

func requestID(r *http.Request) string {
	if id := r.Header.Get(headerRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *CounterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)
	res := h.Invoke(r.Context(), id)

	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set(headerRequestID, id)
	w.WriteHeader(res.StatusCode)
	io.WriteString(w, res.Body)
}

// serveInvocation counts any payload. Only an API Gateway shaped event
// contributes its request id; anything else is invoked as an empty event.
func (h *CounterHandler) serveInvocation(w http.ResponseWriter, r *http.Request) {
	var ev events.APIGatewayProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debugf("invocation is not an API Gateway event: %v", err)
		ev = events.APIGatewayProxyRequest{}
	}

	res, err := h.HandleLambda(r.Context(), ev)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+headerRequestID)
	w.WriteHeader(http.StatusNoContent)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok\n")
}

// NewRouter counts every request except CORS preflights, health checks and
// emulated Lambda invocations which count through HandleLambda.
func NewRouter(h *CounterHandler) *mux.Router {
	r := mux.NewRouter()
	r.Methods(http.MethodOptions).HandlerFunc(preflight)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc(InvocationsPath, h.serveInvocation).Methods(http.MethodPost)
	r.PathPrefix("/").Handler(h)
	return r
}
