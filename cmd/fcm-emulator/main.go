package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therasuldev/fcm-notification/emulator"
	"github.com/therasuldev/fcm-notification/fcm"
)

func main() {
	addr := flag.String("addr", ":8980", "Address to listen on")
	creds := flag.String("creds", "service_account.json", "Path to the service account key file to accept")
	flag.Parse()

	account, err := fcm.LoadServiceAccount(*creds)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}

	srv, err := emulator.New(account)
	if err != nil {
		log.Fatalf("Failed to start emulator: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := srv.Router()

	log.Printf("[Emulator] Serving project %s for %s", account.ProjectID, account.ClientEmail)
	log.Printf("[Emulator] Listening on %s (token endpoint: /token, send endpoint: /v1/projects/%s/messages:send)", *addr, account.ProjectID)

	server := &http.Server{
		Addr:    *addr,
		Handler: router,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed: ", err)
	}
}
