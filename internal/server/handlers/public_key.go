package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/x509"

	"github.com/renqiukai/wzbank-go/internal/crypto"
)

// PublicKeyResponse publishes the key clients use to verify sandbox responses.
type PublicKeyResponse struct {
	// uncompressed point, 04 prefixed: the value of WZB_SM2_BANK_PUBLIC_KEY
	PublicKeyHex string `json:"publicKeyHex" example:"04A1B2..."`
	PublicKeyPEM string `json:"publicKeyPem"`
	Fingerprint  string `json:"fingerprint" example:"3f2a9c0d11e4b7a8"`
}

// HandlePublicKey godoc
//
//	@Summary		Sandbox signing key
//	@Description	Returns the SM2 public key that signs sandbox responses.
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	PublicKeyResponse	"Sandbox public key"
//	@Router			/public-key [get]
func HandlePublicKey(publicKey *sm2.PublicKey) (http.HandlerFunc, error) {
	pemBytes, err := x509.WritePublicKeyToPem(publicKey)
	if err != nil {
		return nil, crypto.WrapKeyManagementError(err, "failed to encode public key")
	}
	response := PublicKeyResponse{
		PublicKeyHex: crypto.PublicKeyToHex(publicKey),
		PublicKeyPEM: string(pemBytes),
		Fingerprint:  crypto.Fingerprint(publicKey),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode public key", http.StatusInternalServerError)
			return
		}
	}, nil
}
