// Package apitest runs an in-memory residence backend on httptest for the
// client, module, and CLI tests. It speaks the same JSON shapes and routes
// as the real backend, issues HS256 session tokens, and records every
// request so tests can assert on paths, headers, and payloads.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/residenciauni/residencia/pkg/httputil"
)

// Collection names served under /{collection}
const (
	News         = "news"
	Assemblies   = "assemblies"
	Disciplinary = "disciplinary-measures"
	Reports      = "reports"
)

// Item is one stored record in its JSON form
type Item map[string]interface{}

// ID returns the item's _id
func (i Item) ID() string {
	s, _ := i["_id"].(string)
	return s
}

// User is an account known to the backend
type User struct {
	ID       string
	Email    string
	Password string
	FullName string
	Role     string
	Floor    *int
}

type failure struct {
	method  string
	path    string
	status  int
	message string
}

// Server is the fake backend
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	collections  map[string][]Item
	users        map[string]User
	googleTokens map[string]string
	tokens       map[string]string
	failures     []failure
	stats        interface{}
	search       []Item
	emptyPatch   bool
	requireToken bool
	nextID       int
	now          func() time.Time
	key          []byte
	recorder     *httputil.Recorder
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		collections: map[string][]Item{
			News:         {},
			Assemblies:   {},
			Disciplinary: {},
			Reports:      {},
		},
		users:        map[string]User{},
		googleTokens: map[string]string{},
		tokens:       map[string]string{},
		now:          time.Now,
		key:          []byte("residencia-apitest-signing-key-32"),
		recorder:     &httputil.Recorder{},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	handler := httputil.Chain(
		httputil.RecoveryMiddleware(log),
		s.recorder.Middleware,
		s.failureMiddleware,
		s.authMiddleware,
	)(s.routes())

	s.Server = httptest.NewServer(handler)
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/google", s.handleGoogle).Methods(http.MethodPost)

	r.HandleFunc("/stats/representative/dashboard", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/representative/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/resident/search", s.handleSearch).Methods(http.MethodGet)

	r.HandleFunc("/disciplinary-measures/my/measures", s.handleMyMeasures).Methods(http.MethodGet)
	r.HandleFunc("/reports/resident/{id}", s.handleReportsByResident).Methods(http.MethodGet)

	r.HandleFunc("/{collection}", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{collection}", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/{collection}/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{collection}/{id}", s.handlePatch).Methods(http.MethodPatch)
	r.HandleFunc("/{collection}/{id}", s.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/{collection}/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/{collection}/{id}/status", s.handlePatch).Methods(http.MethodPatch)

	return r
}

// Seed appends items to a collection, assigning ids where missing
func (s *Server) Seed(collection string, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		cp := cloneItem(it)
		if cp.ID() == "" {
			cp["_id"] = s.newID(collection)
		}
		s.collections[collection] = append(s.collections[collection], cp)
	}
}

// Items returns a copy of a collection
func (s *Server) Items(collection string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.collections[collection]))
	for _, it := range s.collections[collection] {
		out = append(out, cloneItem(it))
	}
	return out
}

// AddUser registers an account and returns a session token for it
func (s *Server) AddUser(u User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = s.newID("user")
	}
	s.users[strings.ToLower(u.Email)] = u
	return s.issueToken(u)
}

// AddGoogleToken maps a Google ID token to an existing account email
func (s *Server) AddGoogleToken(idToken, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.googleTokens[idToken] = strings.ToLower(email)
}

// RequireToken makes every non-auth route demand a token issued by this server
func (s *Server) RequireToken(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireToken = on
}

// FailNext makes the next request matching method and path fail with status
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, message: message})
}

// SetStats sets the representative dashboard payload
func (s *Server) SetStats(stats interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// SetSearch sets the search index; results are matched on title
func (s *Server) SetSearch(results ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = results
}

// EmptyPatch makes PATCH responses carry no body
func (s *Server) EmptyPatch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyPatch = on
}

// Requests returns every request received so far
func (s *Server) Requests() []httputil.RecordedRequest {
	return s.recorder.Requests()
}

// RequestsTo returns the requests that hit method and path
func (s *Server) RequestsTo(method, path string) []httputil.RecordedRequest {
	var out []httputil.RecordedRequest
	for _, r := range s.recorder.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent request, or false when there was none
func (s *Server) LastRequest() (httputil.RecordedRequest, bool) {
	reqs := s.recorder.Requests()
	if len(reqs) == 0 {
		return httputil.RecordedRequest{}, false
	}
	return reqs[len(reqs)-1], true
}

// ResetRequests forgets recorded requests
func (s *Server) ResetRequests() {
	s.recorder.Reset()
}

// SignToken signs an HS256 session token carrying the account's claims
func SignToken(key []byte, u User) (string, error) {
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	priv := map[string]interface{}{
		"id":       u.ID,
		"role":     u.Role,
		"fullName": u.FullName,
		"email":    u.Email,
	}
	if u.Floor != nil {
		priv["floor"] = *u.Floor
	}
	std := jwt.Claims{
		Subject:  u.ID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	return jwt.Signed(sig).Claims(std).Claims(priv).Serialize()
}

func (s *Server) issueToken(u User) string {
	token, err := SignToken(s.key, u)
	if err != nil {
		panic(err)
	}
	s.tokens[token] = strings.ToLower(u.Email)
	return token
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", strings.TrimSuffix(prefix, "s"), s.nextID)
}

// userFor returns the account behind the request's bearer token
func (s *Server) userFor(r *http.Request) (User, bool) {
	token := httputil.BearerToken(r)
	if token == "" {
		return User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		return User{}, false
	}
	u, ok := s.users[email]
	return u, ok
}

func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for i, f := range s.failures {
			if f.method == r.Method && f.path == r.URL.Path {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				s.mu.Unlock()
				httputil.WriteErrorMessage(w, f.status, f.message)
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		required := s.requireToken
		s.mu.Unlock()
		if !required || strings.HasPrefix(r.URL.Path, "/auth/") {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := s.userFor(r); !ok {
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loginBody(token string, u User) map[string]interface{} {
	user := map[string]interface{}{
		"_id":      u.ID,
		"role":     u.Role,
		"fullName": u.FullName,
		"email":    u.Email,
	}
	if u.Floor != nil {
		user["floor"] = *u.Floor
	}
	return map[string]interface{}{"token": token, "user": user}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		httputil.WriteUnauthorized(w, "Credenciales inválidas")
		return
	}
	token := s.issueToken(u)
	s.mu.Unlock()
	httputil.WriteSuccess(w, loginBody(token, u))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(req.Email)
	if _, exists := s.users[key]; exists {
		httputil.WriteErrorMessage(w, http.StatusConflict, "El correo ya está registrado")
		return
	}
	s.users[key] = User{
		ID:       s.newID("user"),
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     "resident",
	}
	httputil.WriteCreated(w, map[string]string{"message": "Usuario registrado"})
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.mu.Lock()
	email, ok := s.googleTokens[req.Token]
	u, known := s.users[email]
	if !ok || !known {
		s.mu.Unlock()
		httputil.WriteUnauthorized(w, "Token de Google inválido")
		return
	}
	token := s.issueToken(u)
	s.mu.Unlock()
	httputil.WriteSuccess(w, loginBody(token, u))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	if stats == nil {
		httputil.WriteNotFound(w, "no stats")
		return
	}
	httputil.WriteSuccess(w, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(httputil.ParseQueryString(r, "query", ""))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Item{}
	for _, it := range s.search {
		title, _ := it["title"].(string)
		if q != "" && strings.Contains(strings.ToLower(title), q) {
			out = append(out, cloneItem(it))
		}
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) handleMyMeasures(w http.ResponseWriter, r *http.Request) {
	u, ok := s.userFor(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Item{}
	for _, it := range s.collections[Disciplinary] {
		if refID(it["residentId"]) == u.ID {
			out = append(out, cloneItem(it))
		}
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) handleReportsByResident(w http.ResponseWriter, r *http.Request) {
	id, _ := httputil.ParsePathString(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Item{}
	for _, it := range s.collections[Reports] {
		if refID(it["resident"]) == id {
			out = append(out, cloneItem(it))
		}
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["collection"]
	if _, ok := s.collections[name]; !ok {
		httputil.WriteNotFound(w, fmt.Sprintf("Cannot %s /%s", r.Method, name))
		return "", false
	}
	return name, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.collection(w, r)
	if !ok {
		return
	}
	out := make([]Item, 0, len(s.collections[name]))
	for _, it := range s.collections[name] {
		out = append(out, cloneItem(it))
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body Item
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	author, hasAuthor := s.userFor(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.collection(w, r)
	if !ok {
		return
	}
	body["_id"] = s.newID(name)
	if hasAuthor {
		body["createdBy"] = map[string]interface{}{
			"_id":      author.ID,
			"fullName": author.FullName,
			"role":     author.Role,
		}
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	switch name {
	case News:
		if _, set := body["publishedAt"]; !set {
			body["publishedAt"] = now
		}
	case Assemblies:
		if _, set := body["status"]; !set {
			body["status"] = "Programada"
		}
	case Disciplinary:
		body["createdAt"] = now
		if _, set := body["status"]; !set {
			body["status"] = "Activa"
		}
	case Reports:
		if _, set := body["date"]; !set {
			body["date"] = now
		}
	}
	s.collections[name] = append(s.collections[name], body)
	httputil.WriteCreated(w, cloneItem(body))
}

func (s *Server) find(name, id string) (int, bool) {
	for i, it := range s.collections[name] {
		if it.ID() == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.collection(w, r)
	if !ok {
		return
	}
	i, found := s.find(name, mux.Vars(r)["id"])
	if !found {
		httputil.WriteNotFound(w, "Registro no encontrado")
		return
	}
	httputil.WriteSuccess(w, cloneItem(s.collections[name][i]))
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, false)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, true)
}

// update merges (PATCH) or replaces (PUT) the mutable fields of a record
func (s *Server) update(w http.ResponseWriter, r *http.Request, replace bool) {
	var body Item
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.collection(w, r)
	if !ok {
		return
	}
	i, found := s.find(name, mux.Vars(r)["id"])
	if !found {
		httputil.WriteNotFound(w, "Registro no encontrado")
		return
	}
	current := s.collections[name][i]
	next := Item{}
	if replace {
		for _, k := range []string{"_id", "createdBy", "createdAt", "status"} {
			if v, ok := current[k]; ok {
				next[k] = v
			}
		}
	} else {
		next = cloneItem(current)
	}
	for k, v := range body {
		if k == "_id" || k == "createdBy" {
			continue
		}
		next[k] = v
	}
	s.collections[name][i] = next

	if s.emptyPatch && r.Method == http.MethodPatch {
		w.WriteHeader(http.StatusOK)
		return
	}
	httputil.WriteSuccess(w, cloneItem(next))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.collection(w, r)
	if !ok {
		return
	}
	i, found := s.find(name, mux.Vars(r)["id"])
	if !found {
		httputil.WriteNotFound(w, "Registro no encontrado")
		return
	}
	s.collections[name] = append(s.collections[name][:i], s.collections[name][i+1:]...)
	httputil.WriteSuccess(w, map[string]string{"message": "Eliminado"})
}

// refID reads an id from either a bare string or an object with _id
func refID(v interface{}) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]interface{}:
		id, _ := ref["_id"].(string)
		return id
	case Item:
		id, _ := ref["_id"].(string)
		return id
	default:
		return ""
	}
}

// cloneItem deep-copies through JSON so callers cannot alias server state
func cloneItem(it Item) Item {
	data, err := json.Marshal(it)
	if err != nil {
		panic(err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
