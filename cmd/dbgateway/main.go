// dbgateway is the Mukoko News database access gateway: a narrow-waist HTTP
// service that exposes a validated, allow-listed subset of document store
// operations to the platform's worker services.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("dbgateway", version)
		os.Exit(0)
	}

	// Local development convenience; absent .env files are not an error.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
