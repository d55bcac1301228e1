package authtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
)

var (
	sharedKey     *ecdsa.PrivateKey
	sharedKeyOnce sync.Once
)

// SharedKey returns a cached ECDSA P-256 key for signing test tokens.
// Using a shared key avoids the overhead of key generation per test.
func SharedKey() *ecdsa.PrivateKey {
	sharedKeyOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic("authtest: failed to generate key: " + err.Error())
		}
		sharedKey = key
	})
	return sharedKey
}
