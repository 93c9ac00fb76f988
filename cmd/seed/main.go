package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"voiceswap/internal/app"
	"voiceswap/internal/config"
	"voiceswap/internal/model"
)

// seed creates a demo session with two guest players and prints their tokens.
func main() {
	sessionID := flag.String("session", "DEMO01", "session id to create")
	assign := flag.Bool("assign", true, "assign roles so the session starts in the talk phase")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer a.Close(context.Background())

	host, err := a.Auth.IssueGuest("Host")
	if err != nil {
		log.Fatalf("Failed to issue host token: %v", err)
	}
	guest, err := a.Auth.IssueGuest("Guest")
	if err != nil {
		log.Fatalf("Failed to issue guest token: %v", err)
	}

	hostID := model.Identity{UserID: host.UserID, Name: "Host"}
	guestID := model.Identity{UserID: guest.UserID, Name: "Guest"}

	if _, err := a.Coordinator.CreateSession(ctx, hostID, model.CreateSessionRequest{
		SessionID: *sessionID,
		Topic:     "Weekend plans",
	}); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	if _, err := a.Coordinator.JoinSession(ctx, guestID, *sessionID, model.JoinSessionRequest{}); err != nil {
		log.Fatalf("Failed to join session: %v", err)
	}
	if *assign {
		roles, err := a.Coordinator.AssignRoles(ctx, hostID, *sessionID)
		if err != nil {
			log.Fatalf("Failed to assign roles: %v", err)
		}
		fmt.Printf("Target:   %s\nDetector: %s\n", roles.TargetID, roles.DetectorID)
	}

	fmt.Printf("Successfully created session '%s' on the %s store\n", *sessionID, cfg.StoreDriver)
	fmt.Printf("Host token:  %s\n", host.Token)
	fmt.Printf("Guest token: %s\n", guest.Token)
}
