package extractor

import "strings"

// bankPrefix maps a transaction reference prefix to the issuing bank.
// Prefixes follow the IFSC bank codes that lead Indian UTR numbers, plus
// the codes foreign branches use on remittance advices.
type bankPrefix struct {
	Prefix string
	Bank   string
}

// bankPrefixes is consulted with longest-prefix-match semantics, so order
// within the table does not matter but entries must stay unique.
var bankPrefixes = []bankPrefix{
	{"SBIN", "State Bank of India"},
	{"HDFC", "HDFC Bank"},
	{"ICIC", "ICICI Bank"},
	{"UTIB", "Axis Bank"},
	{"KKBK", "Kotak Mahindra Bank"},
	{"PUNB", "Punjab National Bank"},
	{"CNRB", "Canara Bank"},
	{"BARB", "Bank of Baroda"},
	{"UBIN", "Union Bank of India"},
	{"BKID", "Bank of India"},
	{"IOBA", "Indian Overseas Bank"},
	{"IDIB", "Indian Bank"},
	{"MAHB", "Bank of Maharashtra"},
	{"CBIN", "Central Bank of India"},
	{"UCBA", "UCO Bank"},
	{"PSIB", "Punjab & Sind Bank"},
	{"YESB", "Yes Bank"},
	{"INDB", "IndusInd Bank"},
	{"FDRL", "Federal Bank"},
	{"SIBL", "South Indian Bank"},
	{"KVBL", "Karur Vysya Bank"},
	{"TMBL", "Tamilnad Mercantile Bank"},
	{"CIUB", "City Union Bank"},
	{"RATN", "RBL Bank"},
	{"DCBL", "DCB Bank"},
	{"BDBL", "Bandhan Bank"},
	{"AUBL", "AU Small Finance Bank"},
	{"IDFB", "IDFC First Bank"},
	{"ESFB", "Equitas Small Finance Bank"},
	{"JAKA", "Jammu & Kashmir Bank"},
	{"KARB", "Karnataka Bank"},
	{"CSBK", "CSB Bank"},
	{"DLXB", "Dhanlaxmi Bank"},
	{"NTBL", "Nainital Bank"},
	{"SRCB", "Saraswat Co-operative Bank"},
	{"COSB", "Cosmos Co-operative Bank"},
	{"PYTM", "Paytm Payments Bank"},
	{"AIRP", "Airtel Payments Bank"},
	{"CITI", "Citibank"},
	{"CITIN", "Citibank India"},
	{"HSBC", "HSBC"},
	{"HSBCN", "HSBC India"},
	{"SCBL", "Standard Chartered Bank"},
	{"DEUT", "Deutsche Bank"},
	{"CHAS", "JPMorgan Chase"},
	{"BARC", "Barclays Bank"},
	{"DBSS", "DBS Bank"},
	{"BNPA", "BNP Paribas"},
	{"ICBK", "ICBC"},
	{"MUFG", "MUFG Bank"},
}

// lookupBankPrefix returns the bank behind a transaction reference by the
// longest prefix that matches, or "" when none do.
func lookupBankPrefix(reference string) (bank string, ok bool) {
	ref := strings.ToUpper(reference)
	best := -1
	for _, bp := range bankPrefixes {
		if len(bp.Prefix) > best && strings.HasPrefix(ref, bp.Prefix) {
			best = len(bp.Prefix)
			bank = bp.Bank
		}
	}
	return bank, best > 0
}
