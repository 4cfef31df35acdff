package canonical

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

// Header names used on the wire.
const (
	HeaderAuthorization     = "Authorization"
	HeaderAppID             = "x-aob-appID"
	HeaderBankID            = "x-aob-bankID"
	HeaderLastLoginTime     = "x-aob-customer-last-logger-time"
	HeaderCustomerIPAddress = "x-aob-customer-ip-address"
	HeaderInteractionID     = "x-aob-interaction-id"
	HeaderAccessToken       = "x-aob-access-token"
	HeaderCustomerUserAgent = "x-customer-user-agent"
	HeaderIdempotencyKey    = "x-idempotency-key"
	HeaderSignature         = "x-aob-signature"

	// FieldBizContent is the body field carrying the encrypted payload.
	FieldBizContent = "bizContent"
)

// gatewaySignedHeaders is the order in which the gateway adds headers to the signed object.
// x-aob-appID and x-aob-bankID come from the header set itself.
var gatewaySignedHeaders = []string{
	HeaderAuthorization,
	HeaderAppID,
	HeaderBankID,
	HeaderLastLoginTime,
	HeaderCustomerIPAddress,
	HeaderInteractionID,
	HeaderAccessToken,
	HeaderCustomerUserAgent,
	HeaderIdempotencyKey,
}

// GatewaySignedHeaders returns the header names the gateway profile may sign, in order.
func GatewaySignedHeaders() []string {
	return append([]string(nil), gatewaySignedHeaders...)
}

// SignProfile selects which fields make up the signed object.
type SignProfile int

const (
	// SignProfileBasic signs {"x-aob-appID","x-aob-bankID","bizContent"}.
	SignProfileBasic SignProfile = iota

	// SignProfileGateway signs every non-empty gateway header in gatewaySignedHeaders order,
	// then bizContent.
	SignProfileGateway

	// SignProfileBody signs {"bizContent"} only.
	SignProfileBody
)

func (p SignProfile) String() string {
	switch p {
	case SignProfileBasic:
		return "basic"
	case SignProfileGateway:
		return "gateway"
	case SignProfileBody:
		return "body"
	default:
		return fmt.Sprintf("SignProfile(%d)", int(p))
	}
}

// ParseSignProfile parses "basic", "gateway" or "body". The empty string is SignProfileBasic.
func ParseSignProfile(s string) (SignProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic":
		return SignProfileBasic, nil
	case "gateway":
		return SignProfileGateway, nil
	case "body":
		return SignProfileBody, nil
	default:
		return SignProfileBasic, fmt.Errorf("unknown sign profile %q (expected basic, gateway or body)", s)
	}
}

// SignedHeaderSet is the input to the signature.
//
// Extra holds the optional gateway headers, keyed by the names in GatewaySignedHeaders.
// It is only read by SignProfileGateway.
type SignedHeaderSet struct {
	AppID      string
	BankID     string
	BizContent string
	Extra      map[string]string
}

// NewSignedHeaderSet returns a header set with no extra headers.
func NewSignedHeaderSet(appID, bankID, bizContent string) SignedHeaderSet {
	return SignedHeaderSet{AppID: appID, BankID: bankID, BizContent: bizContent}
}

// WithHeaders returns a copy of s whose Extra holds every gateway signed header present in h.
// x-aob-appID and x-aob-bankID in h are ignored: the set's own fields are signed.
func (s SignedHeaderSet) WithHeaders(h http.Header) SignedHeaderSet {
	extra := make(map[string]string)
	for _, name := range gatewaySignedHeaders {
		if name == HeaderAppID || name == HeaderBankID {
			continue
		}
		if v := h.Get(name); v != "" {
			extra[name] = v
		}
	}
	s.Extra = extra
	return s
}

// Canonical returns the signing input: a compact UTF-8 JSON object with a fixed key order.
//
// For SignProfileBasic:
//
//	{"x-aob-appID":"A1","x-aob-bankID":"WZB","bizContent":"0A1B..."}
func (s SignedHeaderSet) Canonical(profile SignProfile) ([]byte, error) {
	var fields [][2]string

	switch profile {
	case SignProfileBasic:
		fields = [][2]string{
			{HeaderAppID, s.AppID},
			{HeaderBankID, s.BankID},
			{FieldBizContent, s.BizContent},
		}
	case SignProfileGateway:
		for _, name := range gatewaySignedHeaders {
			var v string
			switch name {
			case HeaderAppID:
				v = s.AppID
			case HeaderBankID:
				v = s.BankID
			default:
				v = s.Extra[name]
			}
			if v != "" {
				fields = append(fields, [2]string{name, v})
			}
		}
		fields = append(fields, [2]string{FieldBizContent, s.BizContent})
	case SignProfileBody:
		fields = [][2]string{{FieldBizContent, s.BizContent}}
	default:
		return nil, fmt.Errorf("unknown sign profile %d", int(profile))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, f[0]); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, f[1]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
