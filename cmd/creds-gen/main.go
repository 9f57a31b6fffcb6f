package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/therasuldev/fcm-notification/fcm"
)

// Generates a throwaway service account key file for use with the emulator.
// The output has the same shape as a key downloaded from the Firebase
// console, but the key is minted locally and grants nothing at Google.
func main() {
	out := flag.String("out", "service_account.json", "Output path for the key file")
	project := flag.String("project", "demo-project", "Project ID to embed")
	email := flag.String("email", "", "Service account email (default fcm-test@<project>.iam.gserviceaccount.com)")
	bits := flag.Int("bits", 2048, "RSA key size")
	flag.Parse()

	if *email == "" {
		*email = fmt.Sprintf("fcm-test@%s.iam.gserviceaccount.com", *project)
	}

	key, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		log.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		log.Fatalf("Failed to encode private key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	account := fcm.ServiceAccount{
		Type:                    "service_account",
		ProjectID:               *project,
		PrivateKeyID:            randomHex(20),
		PrivateKey:              string(keyPEM),
		ClientEmail:             *email,
		ClientID:                randomDigits(21),
		AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
		TokenURI:                "https://oauth2.googleapis.com/token",
		AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
		ClientX509CertURL:       "https://www.googleapis.com/robot/v1/metadata/x509/" + url.QueryEscape(*email),
		UniverseDomain:          "googleapis.com",
	}

	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal key file: %v", err)
	}
	if err := os.WriteFile(*out, data, 0600); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	fmt.Printf("Wrote key file for %s to %s\n", *email, *out)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to read random bytes: %v", err)
	}
	return hex.EncodeToString(b)
}

// randomDigits fakes the numeric client ID of a real key file.
func randomDigits(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to read random bytes: %v", err)
	}
	for i := range b {
		b[i] = '0' + b[i]%10
	}
	return string(b)
}
