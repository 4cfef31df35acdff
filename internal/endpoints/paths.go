package endpoints

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Path is a gateway endpoint path of the form V{n}/P{service}/S{scenario}/{operation}.
type Path string

const (
	PathAccountBalance       Path = "V1/P01502/S01/queryeaccountbalance"
	PathSingleTransfer       Path = "V1/P01506/S01/singletrans"
	PathSingleTransferResult Path = "V1/P01507/S01/selsingletrans"
	PathBatchTransfer        Path = "V1/P01508/S01/batchtrans"
	PathBatchTransferResult  Path = "V1/P01509/S01/selbatchtrans"
	PathHourDetails          Path = "V1/P01512/S01/queryhourdetails"
	PathDetailsReceipt       Path = "V1/P01513/S01/detailsreceipt"
	PathCheckAccount         Path = "V1/P01518/S01/checkAcct"
	PathCheckResultUpdate    Path = "V1/P01519/S01/checkResultUpdate"
	PathSubAccountBalance    Path = "V1/P01520/S01/queryeSubacctBalance"
	PathHourDetails2         Path = "V1/P01522/S01/queryhourdetails2"
	PathReceiptDetails       Path = "V1/P01523/S01/queryreceiptdetails"
	PathBankInfos            Path = "V1/P01524/S01/querybankinfos"
	PathCertExpiry           Path = "V1/P01525/S01/queryCertExpiry"
)

var pathPattern = regexp.MustCompile(`^V[0-9]+/P[0-9]+/S[0-9]+/[A-Za-z0-9]+$`)

// ParsePath trims a leading slash and checks the V/P/S/operation shape.
func ParsePath(s string) (Path, error) {
	p := Path(strings.TrimLeft(strings.TrimSpace(s), "/"))
	if !pathPattern.MatchString(string(p)) {
		return "", fmt.Errorf("invalid endpoint path %q (expected V{n}/P{service}/S{scenario}/{operation})", s)
	}
	return p, nil
}

// Operation returns the last path segment, e.g. queryeaccountbalance.
func (p Path) Operation() string {
	s := string(p)
	return s[strings.LastIndex(s, "/")+1:]
}

// Endpoint describes one documented bank endpoint.
type Endpoint struct {
	Name        string
	Path        Path
	Description string

	// Idempotent endpoints only read data and may be retried without an idempotency key.
	Idempotent bool

	// Required lists fields that must be present and non-empty.
	Required []string
}

var catalog = []Endpoint{
	{Name: "balance", Path: PathAccountBalance, Description: "账户余额查询 (account balance)", Idempotent: true, Required: []string{"payAcctNo"}},
	{Name: "transfer", Path: PathSingleTransfer, Description: "单笔转账 (single transfer)", Required: singleTransferRequired},
	{Name: "transfer-result", Path: PathSingleTransferResult, Description: "单笔转账结果查询 (single transfer result)", Idempotent: true},
	{Name: "batch-transfer", Path: PathBatchTransfer, Description: "批量转账 (batch transfer)"},
	{Name: "batch-transfer-result", Path: PathBatchTransferResult, Description: "批量转账结果查询 (batch transfer result)", Idempotent: true, Required: []string{"payAcctNo", "batchNo"}},
	{Name: "hour-details", Path: PathHourDetails, Description: "账户明细查询 (account details)", Idempotent: true, Required: []string{"payAcctNo", "startDate", "endDate"}},
	{Name: "details-receipt", Path: PathDetailsReceipt, Description: "明细回单下载 (transaction receipt file)", Idempotent: true, Required: []string{"acctNo", "transDate", "transSeqno"}},
	{Name: "check-account", Path: PathCheckAccount, Description: "对账 (statement reconciliation)", Idempotent: true, Required: []string{"payAcctNo", "startDate", "endDate"}},
	{Name: "check-result-update", Path: PathCheckResultUpdate, Description: "对账结果更新 (reconciliation result update)"},
	{Name: "sub-account-balance", Path: PathSubAccountBalance, Description: "子账户余额查询 (sub-account balance)", Idempotent: true, Required: []string{"payAcctNo"}},
	{Name: "hour-details2", Path: PathHourDetails2, Description: "账户明细查询2 (account details v2)", Idempotent: true, Required: []string{"payAcctNo", "startDate", "endDate"}},
	{Name: "receipt-details", Path: PathReceiptDetails, Description: "回单明细查询 (receipt details)", Idempotent: true},
	{Name: "bank-info", Path: PathBankInfos, Description: "行名行号查询 (bank name/number lookup)", Idempotent: true, Required: []string{"type"}},
	{Name: "cert-expiry", Path: PathCertExpiry, Description: "证书到期查询 (certificate expiry)", Idempotent: true, Required: []string{"payAcctNo"}},
}

// All returns the documented endpoints.
func All() []Endpoint {
	return slices.Clone(catalog)
}

// Lookup finds an endpoint by name (balance), operation (queryeaccountbalance) or full path.
// Matching is case-insensitive.
func Lookup(s string) (Endpoint, bool) {
	s = strings.TrimLeft(strings.TrimSpace(s), "/")
	for _, e := range catalog {
		if strings.EqualFold(e.Name, s) || strings.EqualFold(e.Path.Operation(), s) || strings.EqualFold(string(e.Path), s) {
			return e, true
		}
	}
	return Endpoint{}, false
}
