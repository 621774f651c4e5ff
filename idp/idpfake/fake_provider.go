package idpfake

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const keyID = "fake-key-1"

// Server is an OpenID Connect provider serving discovery and JWKS documents and
// minting RS256 ID tokens.
type Server struct {
	*httptest.Server
	key           *rsa.PrivateKey
	discoveryHits atomic.Int32
	OmitJWKSURI   bool // serve a discovery document without jwks_uri
	FailDiscovery bool
}

func New() (*Server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	s := &Server{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.discovery)
	mux.HandleFunc("GET /jwks", s.jwks)
	s.Server = httptest.NewServer(mux)
	return s, nil
}

// DiscoveryHits counts discovery document fetches.
func (s *Server) DiscoveryHits() int {
	return int(s.discoveryHits.Load())
}

// IssueIDToken signs an ID token for clientID carrying nonce and the extra claims.
func (s *Server) IssueIDToken(clientID, nonce string, extra jwt.MapClaims) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.URL,
		"aud":   clientID,
		"sub":   "provider-user-1",
		"email": "a@b.com",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(s.key)
}

func (s *Server) discovery(w http.ResponseWriter, r *http.Request) {
	s.discoveryHits.Add(1)
	if s.FailDiscovery {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	doc := map[string]any{
		"issuer":                                s.URL,
		"authorization_endpoint":                s.URL + "/authorize",
		"token_endpoint":                        s.URL + "/token",
		"response_types_supported":              []string{"id_token"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if !s.OmitJWKSURI {
		doc["jwks_uri"] = s.URL + "/jwks"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (s *Server) jwks(w http.ResponseWriter, r *http.Request) {
	pub := s.key.PublicKey
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}
