package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"git.sr.ht/~jakintosh/authclient/internal/web"
	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
)

func main() {
	apiURL := readEnvVar("API_URL")
	port := fmt.Sprintf(":%s", readEnvVar("PORT"))

	// plain http in local development
	cookies := store.DefaultCookieOptions
	cookies.Secure = os.Getenv("INSECURE_COOKIES") == ""

	logLevel := client.LogLevelDefault
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level, err := client.ParseLogLevel(v)
		if err != nil {
			log.Fatalf("invalid LOG_LEVEL: %v\n", err)
		}
		logLevel = level
	}

	app, err := web.New(web.Options{
		APIURL:   apiURL,
		Cookies:  cookies,
		LogLevel: logLevel,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("serving on %s against %s\n", port, apiURL)
	log.Fatal(http.ListenAndServe(port, app.Router()))
}

func readEnvVar(name string) string {
	str, present := os.LookupEnv(name)
	if !present {
		log.Fatalf("missing required env var '%s'\n", name)
	}
	return str
}
