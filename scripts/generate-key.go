// Package main is a development utility for generating a field encryption
// key. It prints 32 random bytes hex-encoded, ready to paste into
// INS_CRYPTO_ENCRYPTION_KEY or crypto.encryption_key in the config file.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func main() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatal(err)
	}
	fmt.Println(hex.EncodeToString(key))
}
