package apifake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/reconfile-dashboard/token"
)

// User is a registered account. Passwords are kept in clear, this is a test double.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	Confirmed   bool      `json:"confirmed"`
	AccessLevel int       `json:"accessLevel"`
	Roles       []string  `json:"roles"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Supplier is the subset of a billing record the fake filters and aggregates on
type Supplier struct {
	ID                 string  `json:"id"`
	PartnerName        string  `json:"partnerName"`
	CustomerName       string  `json:"customerName"`
	SubscriptionID     string  `json:"subscriptionId"`
	ProductName        string  `json:"productName"`
	ChargeStartDate    string  `json:"chargeStartDate"`
	BillingPreTaxTotal float64 `json:"billingPreTaxTotal"`
	BillingCurrency    string  `json:"billingCurrency"`
	IsActive           bool    `json:"isActive"`
}

// Import records the last spreadsheet upload
type Import struct {
	FileName string
	Size     int
}

// Server is an in-process stand-in for the billing API. Access tokens are HS256 JWTs;
// refresh tokens are opaque and single use.
type Server struct {
	httpServer *httptest.Server

	mu            sync.Mutex
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
	generation    int
	users         map[string]*User
	refreshTokens map[string]string // token -> user id
	suppliers     []Supplier
	calls         map[string]int
	failures      map[string]int // route -> forced status
	refreshDelay  time.Duration
	lastImport    *Import
	lastQuery     url.Values
	importedRows  int
}

type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

// WithNowTime overrides the clock used for issuing and verifying tokens
func WithNowTime(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:        []byte(uuid.NewString()),
		accessTTL:     15 * time.Minute,
		refreshTTL:    7 * 24 * time.Hour,
		now:           time.Now,
		users:         make(map[string]*User),
		refreshTokens: make(map[string]string),
		calls:         make(map[string]int),
		failures:      make(map[string]int),
		importedRows:  3,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signin", s.signIn)
	mux.HandleFunc("POST /auth/signup", s.signUp)
	mux.HandleFunc("POST /auth/refresh", s.refresh)
	mux.HandleFunc("GET /users/current", s.authed(s.currentUser))
	mux.HandleFunc("PUT /users/current", s.authed(s.updateCurrentUser))
	mux.HandleFunc("PATCH /users/password", s.authed(s.updatePassword))
	mux.HandleFunc("GET /users", s.authed(s.listUsers))
	mux.HandleFunc("PUT /users/{id}", s.authed(s.updateUser))
	mux.HandleFunc("GET /suppliers", s.authed(s.listSuppliers))
	mux.HandleFunc("GET /suppliers/overview", s.authed(s.overview))
	mux.HandleFunc("POST /suppliers/import", s.authed(s.importSuppliers))

	s.httpServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls[route]++
		status, failing := s.failures[route]
		s.mu.Unlock()
		if failing {
			writeError(w, status, "INTERNAL_SERVER_ERROR_EXCEPTION", "Service unavailable")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// URL is the API base URL, with a trailing slash
func (s *Server) URL() string {
	return s.httpServer.URL + "/"
}

func (s *Server) Close() {
	s.httpServer.Close()
}

// AddUser registers a user and returns it with defaults filled in
func (s *Server) AddUser(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	s.users[u.ID] = &u
	return u
}

// User returns a copy of a registered user
func (s *Server) User(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (s *Server) SetSuppliers(records []Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers = append([]Supplier(nil), records...)
}

// ExpireAccessTokens invalidates every access token issued so far
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// RevokeRefreshTokens invalidates every outstanding refresh token
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

// FailRoute makes every request to "METHOD /path" fail with status
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// SetRefreshDelay holds each refresh for d before it is answered
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// Calls returns how many requests reached "METHOD /path"
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) LastImport() (Import, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastImport == nil {
		return Import{}, false
	}
	return *s.lastImport, true
}

// LastSupplierQuery returns the query string of the last supplier list call
func (s *Server) LastSupplierQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// IssueTokens creates a credential pair for a registered user
func (s *Server) IssueTokens(userID string) (token.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

func (s *Server) issueLocked(userID string) (token.Pair, error) {
	now := s.now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"gen": s.generation,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return token.Pair{}, err
	}
	refresh := uuid.NewString()
	s.refreshTokens[refresh] = userID
	return token.Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(s.accessTTL / time.Second),
		RefreshExpiresIn: int64(s.refreshTTL / time.Second),
	}, nil
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) && u.Password == in.Password {
			pair, err := s.issueLocked(u.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR_EXCEPTION", err.Error())
				return
			}
			writeData(w, http.StatusOK, pair)
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS_EXCEPTION", "Invalid email or password")
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) {
			writeError(w, http.StatusConflict, "CONFLICT_EXCEPTION", "Email already in use")
			return
		}
	}
	now := s.now().UTC()
	u := &User{ID: uuid.NewString(), Name: in.Name, Email: in.Email, Password: in.Password, IsActive: true, Roles: []string{"user"}, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u

	pair, err := s.issueLocked(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR_EXCEPTION", err.Error())
		return
	}
	writeData(w, http.StatusCreated, pair)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	delay := s.refreshDelay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refreshTokens[in.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED_EXCEPTION", "Invalid refresh token")
		return
	}
	delete(s.refreshTokens, in.RefreshToken)

	pair, err := s.issueLocked(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR_EXCEPTION", err.Error())
		return
	}
	writeData(w, http.StatusOK, pair)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *User)

// authed verifies the bearer JWT and runs next with the caller's user, under the lock.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))

		s.mu.Lock()
		defer s.mu.Unlock()

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED_EXCEPTION", "Token expired or invalid")
			return
		}
		if gen, _ := claims["gen"].(float64); int(gen) != s.generation {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED_EXCEPTION", "Token expired or invalid")
			return
		}
		sub, _ := claims.GetSubject()
		user, ok := s.users[sub]
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED_EXCEPTION", "Unknown user")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) currentUser(w http.ResponseWriter, _ *http.Request, user *User) {
	writeData(w, http.StatusOK, user)
}

func (s *Server) updateCurrentUser(w http.ResponseWriter, r *http.Request, user *User) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid body")
		return
	}
	for _, u := range s.users {
		if u.ID != user.ID && strings.EqualFold(u.Email, in.Email) {
			writeError(w, http.StatusConflict, "CONFLICT_EXCEPTION", "Email already in use")
			return
		}
	}
	user.Name, user.Email, user.UpdatedAt = in.Name, in.Email, s.now().UTC()
	writeData(w, http.StatusOK, user)
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request, user *User) {
	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid body")
		return
	}
	if in.OldPassword != user.Password {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Current password is incorrect")
		return
	}
	user.Password, user.UpdatedAt = in.NewPassword, s.now().UTC()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ *User) {
	filter := strings.ToLower(r.URL.Query().Get("filter"))
	var matched []User
	for _, u := range s.users {
		if filter == "" || strings.Contains(strings.ToLower(u.Name+" "+u.Email), filter) {
			matched = append(matched, *u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })
	writeList(w, r.URL.Query(), matched)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, _ *User) {
	target, ok := s.users[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND_EXCEPTION", "User not found")
		return
	}
	var in struct {
		Name        *string  `json:"name"`
		Email       *string  `json:"email"`
		AccessLevel *int     `json:"accessLevel"`
		Roles       []string `json:"roles"`
		IsActive    *bool    `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid body")
		return
	}
	if in.Name != nil {
		target.Name = *in.Name
	}
	if in.Email != nil {
		target.Email = *in.Email
	}
	if in.AccessLevel != nil {
		target.AccessLevel = *in.AccessLevel
	}
	if in.Roles != nil {
		target.Roles = in.Roles
	}
	if in.IsActive != nil {
		target.IsActive = *in.IsActive
	}
	target.UpdatedAt = s.now().UTC()
	writeData(w, http.StatusOK, target)
}

func (s *Server) listSuppliers(w http.ResponseWriter, r *http.Request, _ *User) {
	query := r.URL.Query()
	s.lastQuery = query

	filter := strings.ToLower(query.Get("filter"))
	var matched []Supplier
	for _, rec := range s.suppliers {
		if filter != "" && !strings.Contains(strings.ToLower(rec.CustomerName+" "+rec.PartnerName+" "+rec.ProductName), filter) {
			continue
		}
		if active := query.Get("isActive"); active != "" && strconv.FormatBool(rec.IsActive) != active {
			continue
		}
		matched = append(matched, rec)
	}
	writeList(w, query, matched)
}

func (s *Server) overview(w http.ResponseWriter, _ *http.Request, _ *User) {
	var total float64
	subscribers := map[string]struct{}{}
	customers := map[string]struct{}{}
	byMonth := map[string]float64{}
	for _, rec := range s.suppliers {
		total += rec.BillingPreTaxTotal
		subscribers[rec.SubscriptionID] = struct{}{}
		customers[rec.CustomerName] = struct{}{}
		if len(rec.ChargeStartDate) >= 7 {
			byMonth[rec.ChargeStartDate[:7]] += rec.BillingPreTaxTotal
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	billing := make([]map[string]any, 0, len(months))
	for _, m := range months {
		billing = append(billing, map[string]any{"yearMonth": m, "total": byMonth[m]})
	}

	writeData(w, http.StatusOK, map[string]any{
		"totalRecords":     len(s.suppliers),
		"totalBilling":     total,
		"totalSubscribers": len(subscribers),
		"totalCustomers":   len(customers),
		"billingByMonth":   billing,
	})
}

func (s *Server) importSuppliers(w http.ResponseWriter, r *http.Request, _ *User) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Expected a multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "File is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Invalid file type")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_EXCEPTION", "Unreadable file")
		return
	}
	s.lastImport = &Import{FileName: header.Filename, Size: len(content)}
	writeData(w, http.StatusCreated, map[string]any{"fileName": header.Filename, "imported": s.importedRows})
}

func writeList[T any](w http.ResponseWriter, query url.Values, items []T) {
	page := atoiDefault(query.Get("page"), 1)
	perPage := atoiDefault(query.Get("perPage"), 10)
	lastPage := (len(items) + perPage - 1) / perPage
	if lastPage == 0 {
		lastPage = 1
	}

	start := (page - 1) * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []T{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": pageItems,
		"meta": map[string]int{"currentPage": page, "perPage": perPage, "lastPage": lastPage, "total": len(items)},
	})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, errType string, messages ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "type": errType, "messages": messages},
	})
}

// String describes the fake for test failure messages
func (s *Server) String() string {
	return fmt.Sprintf("apifake.Server(%s)", s.httpServer.URL)
}
