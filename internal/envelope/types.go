package envelope

import (
	"net/http"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/transport"
)

// Decrypted response common fields.
const (
	FieldDealCode = "dealCode"
	FieldDealMsg  = "dealMsg"
	FieldTotalNum = "totalNum"
	FieldNowPage  = "nowPage"
	FieldPageNum  = "pageNum"
	FieldFileURL  = "fileUrl"
)

// DefaultSuccessCode is the dealCode the bank uses for success.
const DefaultSuccessCode = "0000"

// WireEnvelope is a sealed request or response: the signed headers and the JSON body
// {"bizContent":"<hex>"}.
type WireEnvelope struct {
	Header http.Header
	Body   []byte

	// BizContent is the uppercase hex ciphertext carried in Body.
	BizContent string

	// Signature is the uppercase hex DER signature carried in the x-aob-signature header.
	Signature string

	// MessageID is the mesgId merged into the payload, for logging.
	MessageID string
}

// Request returns the transport request that POSTs the envelope to url.
func (w *WireEnvelope) Request(url string) *transport.Request {
	return &transport.Request{
		URL:    url,
		Header: w.Header.Clone(),
		Body:   w.Body,
	}
}

// DecodedResponse is an authenticated, decrypted response.
//
// A dealCode other than the success code is a business outcome, not an error:
// the caller decides what to do with it.
type DecodedResponse struct {
	DealCode string
	DealMsg  string

	// paging fields, empty when the endpoint is not paged
	TotalNum string
	NowPage  string
	PageNum  string

	// FileURL is returned as data; the client never fetches it.
	FileURL string

	// Fields is the whole decrypted payload, common fields included, in the order received.
	Fields *canonical.Payload

	StatusCode int
	Header     http.Header

	// Verified is false only when response verification is disabled.
	Verified bool

	successCode string
}

// Succeeded reports whether DealCode equals the configured success code.
func (r *DecodedResponse) Succeeded() bool {
	code := r.successCode
	if code == "" {
		code = DefaultSuccessCode
	}
	return r.DealCode == code
}

// Decode unmarshals the decrypted payload into v.
func (r *DecodedResponse) Decode(v any) error {
	return r.Fields.Decode(v)
}

func newDecodedResponse(fields *canonical.Payload, status int, header http.Header, verified bool, successCode string) *DecodedResponse {
	return &DecodedResponse{
		DealCode:    fields.GetString(FieldDealCode),
		DealMsg:     fields.GetString(FieldDealMsg),
		TotalNum:    fields.GetString(FieldTotalNum),
		NowPage:     fields.GetString(FieldNowPage),
		PageNum:     fields.GetString(FieldPageNum),
		FileURL:     fields.GetString(FieldFileURL),
		Fields:      fields,
		StatusCode:  status,
		Header:      header,
		Verified:    verified,
		successCode: successCode,
	}
}
