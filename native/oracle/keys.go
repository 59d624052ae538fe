package oracle

import "swaptrade/native/ledger"

var quotePrefix = []byte("oracle/quote/")

func quoteKey(from, to ledger.Asset) []byte {
	buf := make([]byte, 0, len(quotePrefix)+len(from)+1+len(to))
	buf = append(buf, quotePrefix...)
	buf = append(buf, from...)
	buf = append(buf, '/')
	buf = append(buf, to...)
	return buf
}
