// Package routertest provides an in-memory RV6688BCM web UI for tests.
//
// It speaks Digest authentication, serves the NAT, info and call-log pages
// from in-memory state, and stores whatever list a NAT save posts so that the
// next page render reflects it, the way the real firmware does.
package routertest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

const (
	realm = "RV6688BCM"
	nonce = "dcd98b7102dd2f0e8b11d0f600bfb0c093"
)

// Request paths as sent by the client (path plus raw query).
const (
	pathInfo    = "/index.htm"
	pathNAT     = "/vs.htm?l0=1&l1=2&l2=0&l3=-1"
	pathNATSave = "/setup.cgi?l0=1&l1=2&l2=0&l3=-1"
	pathApply   = "/setup.cgi?l0=-1&l1=-1&l2=-1&l3=-1"
	pathCallLog = "/voice_call_logs.htm?l0=3&l1=2&l2=1&l3=-1"
)

// Submission is one recorded form POST.
type Submission struct {
	Path    string
	Referer string
	Fields  [][2]string
}

// Value returns the first value posted under key.
func (s Submission) Value(key string) string {
	for _, f := range s.Fields {
		if f[0] == key {
			return f[1]
		}
	}
	return ""
}

// Keys returns the posted field names in wire order.
func (s Submission) Keys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, f[0])
	}
	return keys
}

type failure struct {
	status int
	body   string
}

// Server is a fake router. The zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	username string
	password string

	mu       sync.Mutex
	vsList   string
	infoPage string
	callLogs []string
	saves    []Submission
	applies  []Submission
	gets     map[string]int
	failures map[string]failure
}

// NewServer starts a fake router accepting the given credentials.
func NewServer(username, password string) *Server {
	s := &Server{
		username: username,
		password: password,
		infoPage: InfoPage,
		gets:     make(map[string]int),
		failures: make(map[string]failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Host returns host:port suitable for the router.host setting.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// SetVSList replaces the stored NAT list value (the content of vs_list).
func (s *Server) SetVSList(list string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vsList = list
}

// VSList returns the stored NAT list value.
func (s *Server) VSList() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vsList
}

// SetInfoPage replaces the status page body.
func (s *Server) SetInfoPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoPage = page
}

// SetCallLogs replaces the call history records.
func (s *Server) SetCallLogs(records []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callLogs = records
}

// FailPath makes every request to path answer with status and body.
func (s *Server) FailPath(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

// Saves returns the recorded NAT saves.
func (s *Server) Saves() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.saves...)
}

// Applies returns the recorded apply submissions.
func (s *Server) Applies() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.applies...)
}

// Gets returns how many authenticated GETs hit path.
func (s *Server) Gets(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth", algorithm=MD5`, realm, nonce))
		http.Error(w, "401 Unauthorized", http.StatusUnauthorized)
		return
	}

	path := r.URL.RequestURI()

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.failures[path]; ok {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}

	switch {
	case r.Method == http.MethodGet && path == pathNAT:
		s.gets[path]++
		_, _ = fmt.Fprintf(w, natPage, s.vsList)
	case r.Method == http.MethodGet && path == pathInfo:
		s.gets[path]++
		_, _ = io.WriteString(w, s.infoPage)
	case r.Method == http.MethodGet && path == pathCallLog:
		s.gets[path]++
		records := s.callLogs
		if records == nil {
			records = []string{}
		}
		encoded, _ := json.Marshal(records)
		_, _ = fmt.Fprintf(w, callLogPage, encoded)
	case r.Method == http.MethodPost && path == pathNATSave:
		sub, err := readSubmission(r, path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.saves = append(s.saves, sub)
		if sub.Value("todo") == "save" {
			s.vsList = strings.TrimSuffix(sub.Value("h_vs_list"), ";")
			if s.vsList != "" {
				s.vsList += ";"
			}
		}
		_, _ = fmt.Fprintf(w, natPage, s.vsList)
	case r.Method == http.MethodPost && path == pathApply:
		sub, err := readSubmission(r, path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.applies = append(s.applies, sub)
		_, _ = io.WriteString(w, s.infoPage)
	default:
		http.NotFound(w, r)
	}
}

func readSubmission(r *http.Request, path string) (Submission, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{Path: path, Referer: r.Header.Get("Referer")}
	if len(raw) == 0 {
		return sub, nil
	}
	for _, pair := range strings.Split(string(raw), "&") {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return Submission{}, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return Submission{}, err
		}
		sub.Fields = append(sub.Fields, [2]string{key, value})
	}
	return sub, nil
}

// authorized verifies an RFC 2617 Digest response for MD5 with or without qop.
func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Digest ") {
		return false
	}
	params := parseDigest(strings.TrimPrefix(header, "Digest "))
	if params["username"] != s.username || params["nonce"] != nonce {
		return false
	}

	ha1 := md5hex(s.username + ":" + realm + ":" + s.password)
	ha2 := md5hex(r.Method + ":" + params["uri"])
	var expected string
	if qop := params["qop"]; qop != "" {
		expected = md5hex(strings.Join([]string{ha1, nonce, params["nc"], params["cnonce"], qop, ha2}, ":"))
	} else {
		expected = md5hex(ha1 + ":" + nonce + ":" + ha2)
	}
	return params["response"] == expected
}

func parseDigest(value string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(k)] = strings.Trim(v, `"`)
	}
	return params
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
