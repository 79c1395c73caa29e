// Package firebaseapp builds the single Firebase app shared by Firestore, Cloud
// Messaging and Auth.
package firebaseapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

type Config struct {
	// ServiceAccountJSON is a base64 encoded service account key. It wins over
	// CredentialsFile when both are set.
	ServiceAccountJSON string
	CredentialsFile    string
	ProjectID          string
}

func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var opts []option.ClientOption

	if cfg.ServiceAccountJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.ServiceAccountJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Println("Firebase: Initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable.")
	} else if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		log.Printf("Firebase: Initializing from local file: %s.", cfg.CredentialsFile)
	} else {
		log.Println("Firebase: No explicit credentials, using application default credentials.")
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}
