package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ssobridge/ssobridge/pkg/logger"
)

type infoResponse struct {
	Value string `json:"value"`
}

// InfoRouter serves the sample secured endpoint used to check that a bearer
// token is accepted.
func InfoRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getInfo)
	return r
}

func getInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infoResponse{Value: "Hello secret world"}); err != nil {
		logger.Errorf("Failed to marshal info response: %v", err)
	}
}
