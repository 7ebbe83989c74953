// Command mugtoken issues a bearer token for the generation and export
// routes of a studio that runs with JWT_SECRET set.
package main

import (
	"flag"
	"fmt"
	"os"

	"mug-studio/handlers/auth"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	subject := flag.String("sub", "designer", "Token subject.")
	name := flag.String("name", "", "Display name carried in the token.")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "How long the token stays valid.")
	flag.Parse()

	logrus.SetLevel(logrus.WarnLevel)
	auth.InitAuth()

	token, err := auth.IssueToken(*subject, *name, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mugtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
