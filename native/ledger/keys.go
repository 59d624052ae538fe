package ledger

import "strings"

var balancePrefix = []byte("ledger/balance/")

func balanceKey(account string, asset Asset) []byte {
	trimmed := strings.TrimSpace(account)
	symbol := string(asset)
	buf := make([]byte, 0, len(balancePrefix)+len(trimmed)+1+len(symbol))
	buf = append(buf, balancePrefix...)
	buf = append(buf, trimmed...)
	buf = append(buf, '/')
	buf = append(buf, symbol...)
	return buf
}
