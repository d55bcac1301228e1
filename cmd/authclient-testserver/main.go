package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/authtest"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all command-line configuration
type Config struct {
	ListenAddr     string
	IssuerDomain   string
	AccessLifetime time.Duration
	Users          []UserCredentials
	Quiet          bool
}

// UserCredentials holds email and password
type UserCredentials struct {
	Email    string
	Password string
}

// OutputContract is the JSON structure emitted on stdout
type OutputContract struct {
	BaseURL        string       `json:"base_url"`
	ControlURL     string       `json:"control_url"`
	IssuerDomain   string       `json:"issuer_domain"`
	AccessLifetime string       `json:"access_lifetime"`
	Users          []OutputUser `json:"users"`
	Keys           OutputKeys   `json:"keys"`
}

type OutputUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OutputKeys struct {
	VerificationKeyDERBase64 string `json:"verification_key_der_base64"`
}

// UserFlag is a custom flag type for repeatable --user flags
type UserFlag []UserCredentials

func (u *UserFlag) String() string {
	return fmt.Sprintf("%v", *u)
}

func (u *UserFlag) Set(value string) error {
	email, password, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("user must be in format 'email:password'")
	}
	*u = append(*u, UserCredentials{Email: email, Password: password})
	return nil
}

func main() {
	cfg := parseFlags()

	if cfg.Quiet {
		log.SetOutput(io.Discard)
	}

	signingKey, verificationKeyDER, err := generateKeys()
	if err != nil {
		log.Fatalf("failed to generate keys: %v\n", err)
	}

	api := authtest.NewAPI(authtest.Options{
		IssuerDomain:   cfg.IssuerDomain,
		AccessLifetime: cfg.AccessLifetime,
		SigningKey:     signingKey,
		PasswordCost:   bcrypt.DefaultCost,
		Logger:         log.Default(),
	})
	if err := seedUsers(api, cfg.Users); err != nil {
		log.Fatalf("failed to seed users: %v\n", err)
	}

	// control routes first so the API router does not shadow them
	r := mux.NewRouter()
	r.PathPrefix("/_control/").Handler(http.StripPrefix("/_control", api.ControlHandler()))
	r.PathPrefix("/").Handler(api.Router())

	// Start HTTP server with ephemeral port
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v\n", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	baseURL := fmt.Sprintf("http://%s:%d", addr.IP, addr.Port)

	contract := OutputContract{
		BaseURL:        baseURL,
		ControlURL:     baseURL + "/_control",
		IssuerDomain:   cfg.IssuerDomain,
		AccessLifetime: cfg.AccessLifetime.String(),
		Users:          make([]OutputUser, len(cfg.Users)),
		Keys: OutputKeys{
			VerificationKeyDERBase64: base64.StdEncoding.EncodeToString(verificationKeyDER),
		},
	}
	for i, user := range cfg.Users {
		contract.Users[i] = OutputUser{Email: user.Email, Password: user.Password}
	}

	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(contract); err != nil {
		log.Fatalf("failed to encode JSON contract: %v\n", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- http.Serve(listener, r)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalf("server error: %v\n", err)
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down\n", sig)
	}
}

func parseFlags() Config {
	var cfg Config
	var users UserFlag

	flag.StringVar(&cfg.ListenAddr, "listen", "127.0.0.1:0", "Listen address (default uses ephemeral port)")
	flag.StringVar(&cfg.IssuerDomain, "issuer-domain", authtest.DefaultIssuerDomain, "Issuer domain for JWT tokens")
	flag.DurationVar(&cfg.AccessLifetime, "access-lifetime", time.Minute, "Lifetime of issued access tokens")
	flag.Var(&users, "user", "User credentials in format 'email:password' (repeatable)")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Suppress log output")

	flag.Parse()

	if len(users) == 0 {
		cfg.Users = []UserCredentials{{Email: "test@example.com", Password: "test"}}
	} else {
		cfg.Users = users
	}

	return cfg
}

func generateKeys() (*ecdsa.PrivateKey, []byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	publicKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	return privateKey, publicKeyDER, nil
}

func seedUsers(api *authtest.API, users []UserCredentials) error {
	for _, user := range users {
		profile := authtest.User{
			Email:       user.Email,
			Permissions: []string{},
			Roles:       []string{},
		}
		if err := api.AddUser(profile, user.Password); err != nil {
			return fmt.Errorf("seed %s: %w", user.Email, err)
		}
	}

	return nil
}
