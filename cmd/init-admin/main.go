// Command init-admin resets the administrator account: it sets a new
// temporary password, clears any lockout and ends its sessions. The
// administrator must change the password on next login.
//
//	init-admin [-password 'Temp#2026pass']
//
// Without -password a random one is generated and printed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"pharmaspot/internal/auth"
	"pharmaspot/internal/config"
	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
)

func main() {
	password := flag.String("password", "", "temporary administrator password")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	ctx := logging.IntoContext(context.Background(), logging.New(cfg.LogLevel))

	db, err := database.Open(ctx, cfg.Database, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	svc, err := auth.NewService(database.New(db), cfg.Auth)
	if err != nil {
		log.Fatal(err)
	}

	pw := *password
	if pw == "" {
		if pw, err = auth.TemporaryPassword(); err != nil {
			log.Fatal(err)
		}
	}
	if err := svc.ResetAdmin(ctx, pw); err != nil {
		log.Fatal("Failed to reset the administrator: ", err)
	}

	fmt.Println("Administrator account reset.")
	fmt.Println("  username: admin")
	fmt.Println("  password:", pw)
	fmt.Println("The password must be changed on first login.")
}
