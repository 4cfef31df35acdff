// Package endpoints maps typed parameters of the documented bank endpoints to business
// payloads and decrypted responses back to typed results.
//
// Mappers only check the fields the bank marks as required; everything else is passed through.
// A dealCode other than success is returned in the result, not as an error.
package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/client"
	"github.com/renqiukai/wzbank-go/internal/envelope"
)

// Caller sends a payload to an endpoint path. *client.Client implements it.
type Caller interface {
	Call(ctx context.Context, path string, payload *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error)
}

// Service exposes the documented endpoints.
type Service struct {
	caller Caller
}

// New returns a Service that sends through caller.
func New(caller Caller) *Service {
	return &Service{caller: caller}
}

var datePattern = regexp.MustCompile(`^[0-9]{8}$`)

// Call sends fields to any catalogued endpoint after checking its required fields.
// Read-only endpoints are marked idempotent so the client may retry them.
func (s *Service) Call(ctx context.Context, e Endpoint, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	if fields == nil {
		fields = canonical.NewPayload()
	}
	for _, name := range e.Required {
		if isBlank(fields, name) {
			return nil, missing(name)
		}
	}
	if e.Idempotent {
		opts = append([]client.CallOption{client.Idempotent()}, opts...)
	}
	return s.caller.Call(ctx, string(e.Path), fields, opts...)
}

func (s *Service) call(ctx context.Context, path Path, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	e, ok := Lookup(string(path))
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %s", path)
	}
	return s.Call(ctx, e, fields, opts...)
}

// AccountBalance is the result of queryeaccountbalance.
type AccountBalance struct {
	PayAcctNo     string `json:"payAcctNo"`
	PayAcctBal    string `json:"payAcctBal"`
	PayAcctUseBal string `json:"payAcctUseBal"`
	CurCode       string `json:"curCode"`
	CurType       string `json:"curType"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	OtherInfo     string `json:"otherInfo"`

	Response *envelope.DecodedResponse `json:"-"`
}

// QueryAccountBalance returns the balance of payAcctNo.
func (s *Service) QueryAccountBalance(ctx context.Context, payAcctNo string, opts ...client.CallOption) (*AccountBalance, error) {
	fields := canonical.NewPayload().Set("payAcctNo", strings.TrimSpace(payAcctNo))
	resp, err := s.call(ctx, PathAccountBalance, fields, opts...)
	if err != nil {
		return nil, err
	}
	var out AccountBalance
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	out.Response = resp
	return &out, nil
}

// QuerySubAccountBalance returns the sub-account balances of payAcctNo.
func (s *Service) QuerySubAccountBalance(ctx context.Context, payAcctNo string, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathSubAccountBalance, canonical.NewPayload().Set("payAcctNo", strings.TrimSpace(payAcctNo)), opts...)
}

// QueryCertExpiry returns the certificate expiry information of payAcctNo.
func (s *Service) QueryCertExpiry(ctx context.Context, payAcctNo string, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathCertExpiry, canonical.NewPayload().Set("payAcctNo", strings.TrimSpace(payAcctNo)), opts...)
}

var singleTransferRequired = []string{
	"payAcctNo",
	"transAmt",
	"payAcctName",
	"rcvAcctNo",
	"rcvAcctName",
	"inbankno",
	"orderNo",
	"reserve2",
}

// SingleTransfer holds the parameters of singletrans.
// CurCode defaults to "1" (CNY) and CurType to "0".
type SingleTransfer struct {
	PayAcctNo   string
	TransAmt    string
	PayAcctName string
	RcvAcctNo   string
	RcvAcctName string
	InBankNo    string
	InBankName  string
	CurCode     string
	CurType     string
	OrderNo     string
	Remark      string
	Reserve1    string
	Reserve2    string

	// Extra fields are appended after the documented ones.
	Extra *canonical.Payload
}

// Payload returns the business payload in the bank's documented field order.
func (t SingleTransfer) Payload() (*canonical.Payload, error) {
	p := canonical.NewPayload().
		Set("payAcctNo", t.PayAcctNo).
		Set("transAmt", t.TransAmt).
		Set("payAcctName", t.PayAcctName).
		Set("rcvAcctNo", t.RcvAcctNo).
		Set("rcvAcctName", t.RcvAcctName).
		Set("inbankno", t.InBankNo)
	setOptional(p, "inbankname", t.InBankName)
	p.Set("curCode", t.CurCode).SetDefault("curCode", "1")
	p.Set("curType", t.CurType).SetDefault("curType", "0")
	p.Set("orderNo", t.OrderNo)
	setOptional(p, "remark", t.Remark)
	setOptional(p, "reserve1", t.Reserve1)
	p.Set("reserve2", t.Reserve2)
	appendExtra(p, t.Extra)

	for _, name := range singleTransferRequired {
		if isBlank(p, name) {
			return nil, missing(name)
		}
	}
	if !isAmount(t.TransAmt) {
		return nil, invalid("transAmt", "must be a positive decimal amount")
	}
	return p, nil
}

// TransferReceipt is the result of singletrans.
type TransferReceipt struct {
	OrderNo   string `json:"orderNo"`
	BankSeqNo string `json:"bankSeqNo"`
	WorkDate  string `json:"workdate"`

	Response *envelope.DecodedResponse `json:"-"`
}

// SingleTransfer submits a single transfer. Pass client.WithIdempotencyKey to make it safe to retry.
func (s *Service) SingleTransfer(ctx context.Context, t SingleTransfer, opts ...client.CallOption) (*TransferReceipt, error) {
	fields, err := t.Payload()
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, PathSingleTransfer, fields, opts...)
	if err != nil {
		return nil, err
	}
	var out TransferReceipt
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	out.Response = resp
	return &out, nil
}

// QuerySingleTransferResult queries the outcome of a single transfer (selsingletrans).
func (s *Service) QuerySingleTransferResult(ctx context.Context, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathSingleTransferResult, fields, opts...)
}

// BatchTransfer submits a batch transfer (batchtrans).
func (s *Service) BatchTransfer(ctx context.Context, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathBatchTransfer, fields, opts...)
}

// QueryBatchTransferResult queries the outcome of a batch (selbatchtrans).
func (s *Service) QueryBatchTransferResult(ctx context.Context, payAcctNo, batchNo string, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	fields := canonical.NewPayload().Set("payAcctNo", payAcctNo).Set("batchNo", batchNo)
	return s.call(ctx, PathBatchTransferResult, fields, opts...)
}

// DateRange selects the account and period of a details or reconciliation query.
// Dates are YYYYMMDD.
type DateRange struct {
	PayAcctNo string
	StartDate string
	EndDate   string

	// Extra carries paging or filter fields, appended after the range.
	Extra *canonical.Payload
}

// Payload returns the business payload.
func (r DateRange) Payload() (*canonical.Payload, error) {
	for _, f := range []struct{ name, value string }{{"startDate", r.StartDate}, {"endDate", r.EndDate}} {
		if f.value != "" && !datePattern.MatchString(f.value) {
			return nil, invalid(f.name, "must be YYYYMMDD")
		}
	}
	if r.StartDate != "" && r.EndDate != "" && r.StartDate > r.EndDate {
		return nil, invalid("endDate", "must not be before startDate")
	}
	p := canonical.NewPayload().
		Set("payAcctNo", r.PayAcctNo).
		Set("startDate", r.StartDate).
		Set("endDate", r.EndDate)
	appendExtra(p, r.Extra)
	return p, nil
}

// QueryHourDetails queries account transactions (queryhourdetails). The response may be paged.
func (s *Service) QueryHourDetails(ctx context.Context, r DateRange, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.dateRangeCall(ctx, PathHourDetails, r, opts...)
}

// QueryHourDetails2 is the second version of the details query (queryhourdetails2).
func (s *Service) QueryHourDetails2(ctx context.Context, r DateRange, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.dateRangeCall(ctx, PathHourDetails2, r, opts...)
}

// CheckAccount requests a reconciliation statement (checkAcct).
func (s *Service) CheckAccount(ctx context.Context, r DateRange, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.dateRangeCall(ctx, PathCheckAccount, r, opts...)
}

func (s *Service) dateRangeCall(ctx context.Context, path Path, r DateRange, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	fields, err := r.Payload()
	if err != nil {
		return nil, err
	}
	return s.call(ctx, path, fields, opts...)
}

// UpdateCheckResult reports reconciliation results (checkResultUpdate).
func (s *Service) UpdateCheckResult(ctx context.Context, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathCheckResultUpdate, fields, opts...)
}

// QueryReceiptDetails queries receipt details (queryreceiptdetails).
func (s *Service) QueryReceiptDetails(ctx context.Context, fields *canonical.Payload, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	return s.call(ctx, PathReceiptDetails, fields, opts...)
}

// ReceiptRequest identifies one transaction receipt. TransOperNo and TransBrno are optional.
type ReceiptRequest struct {
	AcctNo      string
	TransDate   string
	TransSeqno  string
	TransOperNo string
	TransBrno   string
}

// Receipt is the result of detailsreceipt. FileURL is returned as is and never fetched.
type Receipt struct {
	FileURL  string
	Response *envelope.DecodedResponse
}

// DownloadDetailsReceipt asks for the receipt file of a transaction (detailsreceipt).
func (s *Service) DownloadDetailsReceipt(ctx context.Context, r ReceiptRequest, opts ...client.CallOption) (*Receipt, error) {
	if r.TransDate != "" && !datePattern.MatchString(r.TransDate) {
		return nil, invalid("transDate", "must be YYYYMMDD")
	}
	fields := canonical.NewPayload().
		Set("acctNo", r.AcctNo).
		Set("transDate", r.TransDate).
		Set("transSeqno", r.TransSeqno)
	setOptional(fields, "transOperNo", r.TransOperNo)
	setOptional(fields, "transBrno", r.TransBrno)

	resp, err := s.call(ctx, PathDetailsReceipt, fields, opts...)
	if err != nil {
		return nil, err
	}
	return &Receipt{FileURL: resp.FileURL, Response: resp}, nil
}

// Bank info lookup types.
const (
	BankInfoByName   = "0"
	BankInfoByNumber = "1"
)

// QueryBankInfos looks up banks by name (type 0, bankName required) or by number
// (type 1, bankNo required).
func (s *Service) QueryBankInfos(ctx context.Context, lookupType, bankName, bankNo string, opts ...client.CallOption) (*envelope.DecodedResponse, error) {
	fields := canonical.NewPayload().Set("type", lookupType)
	switch lookupType {
	case BankInfoByName:
		if strings.TrimSpace(bankName) == "" {
			return nil, invalid("bankName", "is required when type is 0")
		}
		fields.Set("bankName", bankName)
	case BankInfoByNumber:
		if strings.TrimSpace(bankNo) == "" {
			return nil, invalid("bankNo", "is required when type is 1")
		}
		fields.Set("bankNo", bankNo)
	default:
		setOptional(fields, "bankName", bankName)
		setOptional(fields, "bankNo", bankNo)
	}
	return s.call(ctx, PathBankInfos, fields, opts...)
}

func setOptional(p *canonical.Payload, key, value string) {
	if value != "" {
		p.Set(key, value)
	}
}

func appendExtra(p, extra *canonical.Payload) {
	if extra == nil {
		return
	}
	for _, k := range extra.Keys() {
		if !p.Has(k) {
			v, _ := extra.Get(k)
			p.Set(k, v)
		}
	}
}

func isBlank(p *canonical.Payload, key string) bool {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return true
	}
	s, isString := v.(string)
	return isString && strings.TrimSpace(s) == ""
}

var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)

func isAmount(s string) bool {
	if !amountPattern.MatchString(s) {
		return false
	}
	return strings.Trim(s, "0.") != ""
}

// decode copies the decrypted payload into a typed result. Scalar values are rendered
// as strings first: the bank is not consistent about quoting amounts and codes.
func decode(resp *envelope.DecodedResponse, v any) error {
	b, err := stringify(resp.Fields).MarshalJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return envelope.WrapMalformedResponseError(err, "unexpected response fields", resp.StatusCode, resp.Header)
	}
	return nil
}

func stringify(p *canonical.Payload) *canonical.Payload {
	out := canonical.NewPayload()
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		out.Set(k, stringifyValue(v))
	}
	return out
}

func stringifyValue(v any) any {
	switch t := v.(type) {
	case *canonical.Payload:
		return stringify(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = stringifyValue(t[i])
		}
		return out
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return v
	}
}
