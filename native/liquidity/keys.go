package liquidity

import "strings"

var (
	reservesKey    = []byte("liquidity/reserves")
	totalSharesKey = []byte("liquidity/shares/total")
	feePoolKey     = []byte("liquidity/fees")
	positionPrefix = []byte("liquidity/position/")
)

func positionKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, 0, len(positionPrefix)+len(trimmed))
	buf = append(buf, positionPrefix...)
	buf = append(buf, trimmed...)
	return buf
}
