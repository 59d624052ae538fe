package history

import "strings"

var (
	logPrefix    = []byte("history/tx/")
	seenPrefix   = []byte("history/seen/")
	aggregateKey = []byte("history/aggregate")
)

func logKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, 0, len(logPrefix)+len(trimmed))
	buf = append(buf, logPrefix...)
	buf = append(buf, trimmed...)
	return buf
}

func seenKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, 0, len(seenPrefix)+len(trimmed))
	buf = append(buf, seenPrefix...)
	buf = append(buf, trimmed...)
	return buf
}
