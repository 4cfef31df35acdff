package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthResponse reports which bank the sandbox is impersonating.
type HealthResponse struct {
	Status      string `json:"status" example:"ok"`
	BankID      string `json:"bankID" example:"WZB"`
	SignProfile string `json:"signProfile" example:"basic"`
}

// HandleHealth godoc
//
//	@Summary		Health (liveness) Check
//	@Description	Check the sandbox is alive and show the bank id and sign profile it expects.
//	@Tags			Common
//	@Produce		json
//
//	@Success		200	{object}	HealthResponse
//
//	@Router			/health [get]
func HandleHealth(bankID, signProfile string) http.HandlerFunc {
	body, _ := json.Marshal(HealthResponse{
		Status:      "ok",
		BankID:      bankID,
		SignProfile: signProfile,
	})

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
