package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
)

// AuthService issues and verifies principal tokens. It stands in for the
// external auth collaborator in offline/dev deployments.
type AuthService struct {
	hmac       []byte
	ttl        time.Duration
	institutes map[string]string // institute id -> bcrypt hash
	now        func() time.Time
}

func NewAuthService(secret string, ttl time.Duration, institutes map[string]string) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if institutes == nil {
		institutes = map[string]string{}
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, institutes: institutes, now: time.Now}
}

type Claims struct {
	Kind        principal.Kind `json:"kind"`
	InstituteID string         `json:"institute_id"`
	StudentID   string         `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}

var errBadToken = errors.New("bad token")

func (a *AuthService) IssueJWT(p principal.Principal) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	sub := p.InstituteID
	if p.IsStudent() {
		sub = p.StudentID
	}
	now := a.now()
	claims := &Claims{
		Kind:        p.Kind,
		InstituteID: p.InstituteID,
		StudentID:   p.StudentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "mindengage-exams",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

// Parse verifies the token and returns the principal it carries.
func (a *AuthService) Parse(tokenStr string) (principal.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return principal.Principal{}, errBadToken
	}
	c, ok := token.Claims.(*Claims)
	if !ok {
		return principal.Principal{}, errBadToken
	}
	p := principal.Principal{Kind: c.Kind, InstituteID: c.InstituteID, StudentID: c.StudentID}
	if err := p.Validate(); err != nil {
		return principal.Principal{}, errBadToken
	}
	return p, nil
}

// CheckInstitutePassword compares against the configured bcrypt hash.
func (a *AuthService) CheckInstitutePassword(instituteID, password string) bool {
	hash, ok := a.institutes[instituteID]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// POST /auth/login  { "institute_id": "...", "password": "..." }
func LoginHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InstituteID string `json:"institute_id"`
			Password    string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if !a.CheckInstitutePassword(req.InstituteID, req.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(principal.Institute(req.InstituteID))
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}

// POST /auth/students/{studentID}/token
// An institute issues a token for one of its students.
func StudentTokenHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal.FromContext(r.Context())
		if !ok || !p.IsInstitute() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
		if studentID == "" {
			http.Error(w, "studentID required", http.StatusBadRequest)
			return
		}
		tok, err := a.IssueJWT(principal.Student(p.InstituteID, studentID))
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}

// JWTMiddleware puts the verified principal in the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			p, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(principal.WithPrincipal(r.Context(), p)))
		})
	}
}
