package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/trendlens/trendlens-api/internal/users"
	clerkwebhook "github.com/trendlens/trendlens-api/internal/webhooks/clerk"
	"github.com/trendlens/trendlens-api/pkg/config"
	"github.com/trendlens/trendlens-api/pkg/db"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/n8n"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "db", "diagnostic: db|users|n8n|sign")
	limit := flag.Int("limit", 10, "number of users to list (for -cmd=users)")
	userID := flag.String("user", "user_diagnose", "user id in the signed sample (for -cmd=sign)")
	email := flag.String("email", "diagnose@example.com", "email in the signed sample (for -cmd=sign)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "diagnose",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch *cmd {
	case "db":
		err = checkDB(ctx, cfg, logg)
	case "users":
		err = listUsers(ctx, cfg, logg, *limit)
	case "n8n":
		err = printJSON(n8n.NewClient(cfg.N8N).Status())
	case "sign":
		err = signSample(cfg, *userID, *email)
	default:
		fail("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		fail("%s: %v", *cmd, err)
	}
}

func userService(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*users.Service, *db.Client, error) {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := users.NewService(users.ServiceParams{Repo: users.NewRepository(client.DB()), Logger: logg})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return svc, client, nil
}

func checkDB(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	svc, client, err := userService(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return err
	}
	count, err := svc.Count(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"database": "ok", "users": count})
}

func listUsers(ctx context.Context, cfg *config.Config, logg *logger.Logger, limit int) error {
	svc, client, err := userService(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := svc.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(users.FromModels(list))
}

// signSample prints a user.created delivery signed with the configured
// secret, ready to POST at a local server.
func signSample(cfg *config.Config, userID, email string) error {
	signer, err := clerkwebhook.NewSigner(cfg.Clerk.WebhookSecret)
	if err != nil {
		return err
	}
	now := time.Now()
	body, err := json.Marshal(map[string]any{
		"type":      "user.created",
		"object":    "event",
		"timestamp": now.UnixMilli(),
		"data": map[string]any{
			"id":                       userID,
			"email_addresses":          []map[string]string{{"id": "idn_diagnose", "email_address": email}},
			"primary_email_address_id": "idn_diagnose",
			"created_at":               now.UnixMilli(),
			"updated_at":               now.UnixMilli(),
		},
	})
	if err != nil {
		return err
	}
	headers, err := signer.Headers("msg_"+uuid.NewString(), now, body)
	if err != nil {
		return err
	}
	flat := map[string]string{}
	for k := range headers {
		flat[k] = headers.Get(k)
	}
	return printJSON(map[string]any{"headers": flat, "body": json.RawMessage(body)})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
