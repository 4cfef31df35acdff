package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/endpoints"
	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/logger"
)

// Operation answers one decrypted request. The returned payload is sealed as the response;
// a non-nil error is sent as an unsigned 500.
type Operation func(ctx context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error)

// Gateway is an http.Handler that plays the bank side of the envelope protocol.
type Gateway struct {
	codec           *envelope.Codec
	appID           string
	bankID          string
	ledger          *Ledger
	banks           []BankInfo
	operations      map[string]Operation
	clock           func() time.Time
	receiptBaseURL  string
	signProfile     canonical.SignProfile
	responseProfile *canonical.SignProfile

	// transfers are serialised so a replayed idempotency key never books twice
	transferMu sync.Mutex
	replies    map[string]*canonical.Payload
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAppID restricts the gateway to one app id. By default any app id is accepted.
func WithAppID(appID string) Option {
	return func(g *Gateway) { g.appID = appID }
}

// WithBankID sets the bank id requests must carry (default WZB).
func WithBankID(bankID string) Option {
	return func(g *Gateway) { g.bankID = bankID }
}

// WithLedger replaces the default demo ledger.
func WithLedger(l *Ledger) Option {
	return func(g *Gateway) { g.ledger = l }
}

// WithClock sets the clock used for work dates.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

// WithSignProfile sets the profile requests are verified and responses are signed under.
func WithSignProfile(profile canonical.SignProfile) Option {
	return func(g *Gateway) { g.signProfile = profile }
}

// WithResponseSignProfile signs responses under a different profile than requests,
// e.g. canonical.SignProfileBody.
func WithResponseSignProfile(profile canonical.SignProfile) Option {
	return func(g *Gateway) { g.responseProfile = &profile }
}

// WithReceiptBaseURL sets the prefix of the file URLs returned by detailsreceipt.
func WithReceiptBaseURL(base string) Option {
	return func(g *Gateway) { g.receiptBaseURL = strings.TrimRight(base, "/") }
}

// WithOperation registers op for an operation name such as queryeaccountbalance,
// replacing the built-in handler.
func WithOperation(name string, op Operation) Option {
	return func(g *Gateway) { g.operations[strings.ToLower(name)] = op }
}

// DemoAccounts are the accounts of the default ledger.
func DemoAccounts() []Account {
	return []Account{
		{No: "733000120190056868", Name: "瓯江实验室", Balance: 100_000_000},
		{No: "733000120190000001", Name: "测试收款户", Balance: 0},
	}
}

// NewGateway returns a Gateway that signs with, and verifies against, provider.
// The provider must hold the bank's signing key and the client's public key.
func NewGateway(provider crypto.Provider, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		bankID:         "WZB",
		banks:          defaultBanks,
		clock:          time.Now,
		receiptBaseURL: "https://sandbox.invalid/receipts",
		replies:        make(map[string]*canonical.Payload),
		operations:     make(map[string]Operation),
	}
	builtin := map[endpoints.Path]Operation{
		endpoints.PathAccountBalance:       g.queryBalance,
		endpoints.PathSingleTransfer:       g.singleTransfer,
		endpoints.PathSingleTransferResult: g.querySingleTransfer,
		endpoints.PathBankInfos:            g.queryBankInfos,
		endpoints.PathDetailsReceipt:       g.detailsReceipt,
	}
	for path, op := range builtin {
		g.operations[strings.ToLower(path.Operation())] = op
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.ledger == nil {
		g.ledger = NewLedger(DemoAccounts()...)
	}

	codecOpts := []envelope.Option{envelope.WithSignProfile(g.signProfile)}
	if g.responseProfile != nil {
		codecOpts = append(codecOpts, envelope.WithResponseSignProfile(*g.responseProfile))
	}
	codec, err := envelope.NewCodec(provider, codecOpts...)
	if err != nil {
		return nil, err
	}
	g.codec = codec
	return g, nil
}

// Ledger returns the gateway's ledger.
func (g *Gateway) Ledger() *Ledger {
	return g.ledger
}

// BankID returns the bank id the gateway answers for.
func (g *Gateway) BankID() string {
	return g.bankID
}

// SignProfile returns the profile inbound requests must be signed with.
func (g *Gateway) SignProfile() canonical.SignProfile {
	return g.signProfile
}

// ServeHTTP handles POST .../V{n}/P{service}/S{scenario}/{operation}.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RespondWithErrorResponse(w, r, NewMethodNotAllowedError("only POST is supported"))
		return
	}

	path, err := operationPath(r.URL.Path)
	if err != nil {
		RespondWithErrorResponse(w, r, NewNotFoundError(err.Error()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			RespondWithErrorResponse(w, r, NewRequestTooLargeError(fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit)))
			return
		}
		RespondWithErrorResponse(w, r, WrapMalformedRequestError(err, "could not read request body"))
		return
	}

	req, err := g.codec.OpenRequest(r.Header, body)
	if err != nil {
		if envelope.CodeOf(err) == envelope.ErrCodeSignatureVerification {
			RespondWithErrorResponse(w, r, WrapBadSignatureError(err, "request signature verification failed"))
			return
		}
		RespondWithErrorResponse(w, r, WrapMalformedRequestError(err, "could not open request envelope"))
		return
	}

	if g.appID != "" && req.AppID != g.appID {
		RespondWithErrorResponse(w, r, NewUnknownAppError(fmt.Sprintf("unknown app id %s", req.AppID)))
		return
	}
	if req.BankID != g.bankID {
		RespondWithErrorResponse(w, r, NewUnknownAppError(fmt.Sprintf("unknown bank id %s", req.BankID)))
		return
	}

	operation := path.Operation()
	logger.ContextWithLogAttrs(r.Context(),
		slog.String("operation", operation),
		slog.String("app_id", req.AppID),
		slog.String("interaction_id", req.InteractionID),
		slog.String("mesg_id", req.MessageID),
	)

	op, ok := g.operations[strings.ToLower(operation)]
	if !ok {
		op = g.echo
	}

	reply, err := op(r.Context(), req)
	if err != nil {
		RespondWithErrorResponse(w, r, WrapInternalError(err, "operation failed"))
		return
	}

	env, err := g.codec.SealResponse(reply, req)
	if err != nil {
		RespondWithErrorResponse(w, r, WrapInternalError(err, "could not seal response"))
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.String("deal_code", reply.GetString(envelope.FieldDealCode)))
	RespondWithEnvelope(w, env)
}

// operationPath returns the last four segments of urlPath as an endpoint path, so the
// gateway can be mounted under any prefix (e.g. /prdApiGW/).
func operationPath(urlPath string) (endpoints.Path, error) {
	segments := strings.Split(strings.Trim(urlPath, "/"), "/")
	if len(segments) < 4 {
		return "", fmt.Errorf("invalid endpoint path %q", urlPath)
	}
	return endpoints.ParsePath(strings.Join(segments[len(segments)-4:], "/"))
}

func reply(dealCode, dealMsg string) *canonical.Payload {
	return canonical.NewPayload().
		Set(envelope.FieldDealCode, dealCode).
		Set(envelope.FieldDealMsg, dealMsg)
}

func success() *canonical.Payload {
	return reply(DealSuccess, "交易成功")
}

// missingField returns the first required field of the endpoint that is absent or blank.
func missingField(path endpoints.Path, payload *canonical.Payload) string {
	e, ok := endpoints.Lookup(string(path))
	if !ok {
		return ""
	}
	for _, name := range e.Required {
		if strings.TrimSpace(payload.GetString(name)) == "" {
			return name
		}
	}
	return ""
}

func (g *Gateway) queryBalance(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	if f := missingField(endpoints.PathAccountBalance, req.Payload); f != "" {
		return reply(DealInvalidField, f+" is required"), nil
	}
	acctNo := req.Payload.GetString("payAcctNo")
	acct, ok := g.ledger.Account(acctNo)
	if !ok {
		return reply(DealUnknownAccount, "账户不存在"), nil
	}
	balance := formatAmount(acct.Balance)
	return success().
		Set("payAcctNo", acct.No).
		Set("payAcctBal", balance).
		Set("payAcctUseBal", balance).
		Set("curCode", "1").
		Set("curType", "0"), nil
}

func (g *Gateway) singleTransfer(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	g.transferMu.Lock()
	defer g.transferMu.Unlock()

	replayKey := ""
	if req.IdempotencyKey != "" {
		replayKey = req.AppID + "|" + req.IdempotencyKey
		if stored, ok := g.replies[replayKey]; ok {
			return stored.Clone(), nil
		}
	}

	out := g.bookTransfer(req.Payload)
	if replayKey != "" {
		g.replies[replayKey] = out.Clone()
	}
	return out, nil
}

func (g *Gateway) bookTransfer(p *canonical.Payload) *canonical.Payload {
	if f := missingField(endpoints.PathSingleTransfer, p); f != "" {
		return reply(DealInvalidField, f+" is required")
	}
	amount, err := parseAmount(p.GetString("transAmt"))
	if err != nil || amount <= 0 {
		return reply(DealInvalidField, "transAmt is invalid")
	}

	t := Transfer{
		OrderNo:   p.GetString("orderNo"),
		BankSeqNo: strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20],
		WorkDate:  g.clock().Format("20060102"),
		PayAcctNo: p.GetString("payAcctNo"),
		RcvAcctNo: p.GetString("rcvAcctNo"),
		Amount:    amount,
	}
	if err := g.ledger.debit(t); err != nil {
		var le *ledgerError
		if errors.As(err, &le) {
			return reply(le.dealCode, le.msg)
		}
		return reply(DealInvalidField, err.Error())
	}

	return success().
		Set("orderNo", t.OrderNo).
		Set("bankSeqNo", t.BankSeqNo).
		Set("workdate", t.WorkDate)
}

func (g *Gateway) querySingleTransfer(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	orderNo := req.Payload.GetString("orderNo")
	if orderNo == "" {
		return reply(DealInvalidField, "orderNo is required"), nil
	}
	t, ok := g.ledger.Transfer(orderNo)
	if !ok {
		return reply(DealUnknownOrder, "交易不存在"), nil
	}
	return success().
		Set("orderNo", t.OrderNo).
		Set("bankSeqNo", t.BankSeqNo).
		Set("workdate", t.WorkDate).
		Set("transAmt", formatAmount(t.Amount)).
		Set("transStatus", "S"), nil
}

func (g *Gateway) queryBankInfos(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	p := req.Payload
	lookupType := p.GetString("type")
	switch {
	case lookupType == endpoints.BankInfoByName && p.GetString("bankName") == "":
		return reply(DealInvalidField, "bankName is required when type is 0"), nil
	case lookupType == endpoints.BankInfoByNumber && p.GetString("bankNo") == "":
		return reply(DealInvalidField, "bankNo is required when type is 1"), nil
	case lookupType != endpoints.BankInfoByName && lookupType != endpoints.BankInfoByNumber:
		return reply(DealInvalidField, "type must be 0 or 1"), nil
	}

	found := searchBanks(g.banks, lookupType, p.GetString("bankName"), p.GetString("bankNo"))
	list := make([]any, 0, len(found))
	for _, b := range found {
		list = append(list, canonical.NewPayload().Set("bankNo", b.BankNo).Set("bankName", b.BankName))
	}
	return success().
		Set(envelope.FieldTotalNum, fmt.Sprint(len(found))).
		Set("list", list), nil
}

func (g *Gateway) detailsReceipt(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	if f := missingField(endpoints.PathDetailsReceipt, req.Payload); f != "" {
		return reply(DealInvalidField, f+" is required"), nil
	}
	p := req.Payload
	name := fmt.Sprintf("%s_%s_%s.pdf", p.GetString("acctNo"), p.GetString("transDate"), p.GetString("transSeqno"))
	return success().Set(envelope.FieldFileURL, g.receiptBaseURL+"/"+name), nil
}

// echo answers operations without a handler with the business fields of the request.
func (g *Gateway) echo(_ context.Context, req *envelope.IncomingRequest) (*canonical.Payload, error) {
	out := success()
	for _, k := range req.Payload.Keys() {
		if out.Has(k) {
			continue
		}
		v, _ := req.Payload.Get(k)
		out.Set(k, v)
	}
	return out, nil
}
