package mqtt

import (
	"crypto/tls"
	"encoding/pem"
)

var tls12 = tls.Config{MinVersion: tls.VersionTLS12}

func pemBlock(typ string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
}
