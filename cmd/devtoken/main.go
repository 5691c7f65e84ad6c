// Command devtoken mints a development session token for a uid/email pair.
// It signs with JWT_SECRET, the same secret the server verifies with.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/campusride/campus/internal/config"
	"github.com/campusride/campus/shared/middleware"
)

func main() {
	uid := flag.String("uid", "", "user id (required)")
	email := flag.String("email", "", "email address (required)")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *uid == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	config.Load()
	token, err := middleware.IssueToken(*uid, *email, *name, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
