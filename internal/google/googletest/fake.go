// Package googletest provides in-memory OAuth and Sheets clients for tests.
package googletest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/google"
	"golang.org/x/oauth2"
)

// OAuth is a fake google.OAuthClient. Codes and refresh tokens map to tokens;
// unknown ones fail with Err (or invalid_grant when Err is nil).
type OAuth struct {
	mu sync.Mutex

	Codes         map[string]*oauth2.Token
	RefreshTokens map[string]*oauth2.Token
	Err           error

	Exchanges int
	Refreshes int
}

var _ google.OAuthClient = (*OAuth)(nil)

func NewOAuth() *OAuth {
	return &OAuth{
		Codes:         make(map[string]*oauth2.Token),
		RefreshTokens: make(map[string]*oauth2.Token),
	}
}

// Token builds a bearer token that expires after ttl.
func Token(access, refresh string, ttl time.Duration) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(ttl),
	}
}

func (o *OAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + url.QueryEscape(state)
}

func (o *OAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Exchanges++

	if tok, ok := o.Codes[code]; ok {
		return tok, nil
	}
	return nil, o.fail()
}

func (o *OAuth) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Refreshes++

	if refreshToken == "" {
		return nil, google.ErrNoRefreshToken
	}
	if tok, ok := o.RefreshTokens[refreshToken]; ok {
		return tok, nil
	}
	return nil, o.fail()
}

func (o *OAuth) fail() error {
	if o.Err != nil {
		return o.Err
	}
	return &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "Bad Request"}
}

// Sheets is a fake google.SheetsClient keeping spreadsheets in memory.
type Sheets struct {
	mu     sync.Mutex
	nextID int

	rows   map[string][][]any
	tokens map[string][]string // spreadsheet id -> access tokens used

	CreateErr error
	WriteErr  error
	AppendErr error
}

var _ google.SheetsClient = (*Sheets)(nil)

func NewSheets() *Sheets {
	return &Sheets{
		rows:   make(map[string][][]any),
		tokens: make(map[string][]string),
	}
}

// Add registers an existing spreadsheet.
func (s *Sheets) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		s.rows[id] = nil
	}
}

func (s *Sheets) CreateSpreadsheet(_ context.Context, ts oauth2.TokenSource, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return "", s.CreateErr
	}
	s.nextID++
	id := fmt.Sprintf("sheet-%d", s.nextID)
	s.rows[id] = nil
	s.record(id, ts)
	return id, nil
}

func (s *Sheets) WriteRow(_ context.Context, ts oauth2.TokenSource, spreadsheetID, _ string, row []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	rows, ok := s.rows[spreadsheetID]
	if !ok {
		return fmt.Errorf("spreadsheet %s not found", spreadsheetID)
	}
	if len(rows) == 0 {
		rows = append(rows, row)
	} else {
		rows[0] = row
	}
	s.rows[spreadsheetID] = rows
	s.record(spreadsheetID, ts)
	return nil
}

func (s *Sheets) AppendRow(_ context.Context, ts oauth2.TokenSource, spreadsheetID, _ string, row []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	rows, ok := s.rows[spreadsheetID]
	if !ok {
		return fmt.Errorf("spreadsheet %s not found", spreadsheetID)
	}
	s.rows[spreadsheetID] = append(rows, row)
	s.record(spreadsheetID, ts)
	return nil
}

func (s *Sheets) record(id string, ts oauth2.TokenSource) {
	if ts == nil {
		return
	}
	if tok, err := ts.Token(); err == nil {
		s.tokens[id] = append(s.tokens[id], tok.AccessToken)
	}
}

// Rows returns a copy of the spreadsheet's rows, header included.
func (s *Sheets) Rows(id string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows[id]))
	copy(out, s.rows[id])
	return out
}

// Count returns the number of spreadsheets created or added.
func (s *Sheets) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// AccessTokens returns the access tokens used against the spreadsheet, in order.
func (s *Sheets) AccessTokens(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens[id]...)
}
