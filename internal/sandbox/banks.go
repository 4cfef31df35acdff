package sandbox

import "strings"

// BankInfo is one entry of the bank directory.
type BankInfo struct {
	BankNo   string
	BankName string
}

var defaultBanks = []BankInfo{
	{BankNo: "313333007331", BankName: "温州银行股份有限公司"},
	{BankNo: "102100099996", BankName: "中国工商银行股份有限公司"},
	{BankNo: "103100000026", BankName: "中国农业银行股份有限公司"},
	{BankNo: "104100000004", BankName: "中国银行股份有限公司"},
	{BankNo: "105100000017", BankName: "中国建设银行股份有限公司"},
}

func searchBanks(banks []BankInfo, lookupType, bankName, bankNo string) []BankInfo {
	var out []BankInfo
	for _, b := range banks {
		switch lookupType {
		case "0":
			if strings.Contains(b.BankName, bankName) {
				out = append(out, b)
			}
		case "1":
			if b.BankNo == bankNo {
				out = append(out, b)
			}
		}
	}
	return out
}
