package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/therasuldev/fcm-notification/fcm"
)

func main() {
	creds := flag.String("creds", "service_account.json", "Path to the service account key file")
	token := flag.String("token", "", "Target device registration token")
	title := flag.String("title", "", "Notification title")
	body := flag.String("body", "", "Notification body")
	data := flag.String("data", "", `Optional data payload as a JSON object of strings, e.g. '{"k":"v"}'`)
	endpoint := flag.String("endpoint", "", "Override the FCM endpoint (for the emulator)")
	tokenURL := flag.String("token-url", "", "Override the OAuth2 token endpoint (for the emulator)")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout covering both HTTP requests")
	flag.Parse()

	if *token == "" {
		log.Fatal("A device token is required (-token)")
	}

	opts := []fcm.Option{fcm.WithHTTPClient(&http.Client{Timeout: *timeout})}
	if *endpoint != "" {
		opts = append(opts, fcm.WithEndpoint(*endpoint))
	}
	if *tokenURL != "" {
		opts = append(opts, fcm.WithTokenURL(*tokenURL))
	}

	client, err := fcm.NewClient(*creds, opts...)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}

	notification := &fcm.Notification{
		Token: *token,
		Title: *title,
		Body:  *body,
	}
	if *data != "" {
		if err := json.Unmarshal([]byte(*data), &notification.Data); err != nil {
			log.Fatalf("Invalid -data value: %v", err)
		}
	}

	if err := client.Send(context.Background(), notification); err != nil {
		log.Fatalf("Failed to send notification: %v", err)
	}

	fmt.Println("Notification sent successfully!")
}
