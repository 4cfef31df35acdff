package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/renqiukai/wzbank-go/internal/version"
)

// VersionResponse is the build information of the sandbox binary.
type VersionResponse struct {
	Service   string `json:"service" example:"wzbank-sandbox"`
	Version   string `json:"version" example:"v0.3.1"`
	BuildDate string `json:"buildDate" example:"2025-06-01T10:00:00Z"`
	GitCommit string `json:"gitCommit" example:"4f2c1ab"`
}

// HandleVersion godoc
//
//	@Summary		Get version information
//	@Description	Returns the sandbox build (set with -ldflags at build time)
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/version [get]
func HandleVersion(info version.Info) http.HandlerFunc {
	body, err := json.Marshal(VersionResponse{
		Service:   "wzbank-sandbox",
		Version:   info.Version,
		BuildDate: info.BuildDate,
		GitCommit: info.GitCommit,
	})

	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, "failed to encode version", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
