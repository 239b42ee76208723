package afip

import (
	"context"
	"encoding/xml"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultExpiryBuffer is how long before the grant's real expiration a
	// cached credential stops being handed out.
	DefaultExpiryBuffer = time.Hour
	// defaultTicketTTL is the validity window requested in the login ticket
	defaultTicketTTL = 12 * time.Hour
)

// Credential is one WSAA session grant scoped to a service name.
type Credential struct {
	ServiceName    string
	Token          string
	Sign           string
	ExpirationTime time.Time
}

// Usable reports whether the credential is still safe to present, leaving
// the buffer as margin against clock skew and in-flight request latency.
func (c *Credential) Usable(now time.Time, buffer time.Duration) bool {
	return now.Before(c.ExpirationTime.Add(-buffer))
}

// CredentialManager authenticates against WSAA and caches one credential per
// service name. Refresh is mutex-guarded, so concurrent callers that observe
// an expired credential trigger exactly one login.
type CredentialManager struct {
	endpoint     string
	signer       Signer
	client       *http.Client
	logger       *zap.Logger
	expiryBuffer time.Duration
	ticketTTL    time.Duration
	now          func() time.Time

	mu    sync.Mutex
	cache map[string]*Credential
}

// CredentialOption configures a CredentialManager.
type CredentialOption func(*CredentialManager)

func WithCredentialLogger(logger *zap.Logger) CredentialOption {
	return func(m *CredentialManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithCredentialHTTPClient(client *http.Client) CredentialOption {
	return func(m *CredentialManager) {
		if client != nil {
			m.client = client
		}
	}
}

func WithExpiryBuffer(buffer time.Duration) CredentialOption {
	return func(m *CredentialManager) {
		if buffer > 0 {
			m.expiryBuffer = buffer
		}
	}
}

func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(m *CredentialManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewCredentialManager creates a manager posting to the given WSAA endpoint.
func NewCredentialManager(endpoint string, signer Signer, opts ...CredentialOption) *CredentialManager {
	m := &CredentialManager{
		endpoint:     endpoint,
		signer:       signer,
		client:       &http.Client{Timeout: defaultRequestTimeout},
		logger:       zap.NewNop(),
		expiryBuffer: DefaultExpiryBuffer,
		ticketTTL:    defaultTicketTTL,
		now:          time.Now,
		cache:        make(map[string]*Credential),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate returns a usable credential for the service, logging in
// through WSAA only when the cached one is absent or inside the expiry
// buffer. Failures propagate typed without internal retries.
func (m *CredentialManager) Authenticate(ctx context.Context, serviceName string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cred, ok := m.cache[serviceName]; ok && cred.Usable(now, m.expiryBuffer) {
		copied := *cred
		return &copied, nil
	}

	cred, err := m.login(ctx, serviceName, now)
	if err != nil {
		return nil, err
	}
	m.cache[serviceName] = cred

	m.logger.Info("wsaa login completed",
		zap.String("service", serviceName),
		zap.Time("expiration_time", cred.ExpirationTime))

	copied := *cred
	return &copied, nil
}

// Invalidate drops the cached credential for a service, forcing the next
// Authenticate call to log in again.
func (m *CredentialManager) Invalidate(serviceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, serviceName)
}

func (m *CredentialManager) login(ctx context.Context, serviceName string, now time.Time) (*Credential, error) {
	tra := LoginTicketRequest{
		Version: "1.0",
		Header: LoginTicketHeader{
			UniqueID:       uint32(now.Unix()),
			GenerationTime: now.Add(-10 * time.Minute).Format(time.RFC3339),
			ExpirationTime: now.Add(m.ticketTTL).Format(time.RFC3339),
		},
		Service: serviceName,
	}
	traXML, err := xml.Marshal(tra)
	if err != nil {
		return nil, formatErr("encoding login ticket request", err)
	}

	cms, err := m.signer.Sign(ctx, append([]byte(xml.Header), traXML...))
	if err != nil {
		return nil, formatErr("signing login ticket request", err)
	}

	inner, err := postEnvelope(ctx, m.client, m.endpoint, wsaaNS, "", loginCmsRequest{In0: cms})
	if err != nil {
		return nil, err
	}

	var resp loginCmsResponse
	if err := xml.Unmarshal(inner, &resp); err != nil {
		return nil, formatErr("decoding loginCms response", err)
	}

	// loginCmsReturn carries the ticket response as escaped XML text
	var ticket LoginTicketResponse
	if err := xml.Unmarshal([]byte(resp.Return), &ticket); err != nil {
		return nil, formatErr("decoding login ticket response", err)
	}

	expiration, err := time.Parse(time.RFC3339, ticket.Header.ExpirationTime)
	if err != nil {
		return nil, formatErr("parsing credential expiration", err)
	}

	return &Credential{
		ServiceName:    serviceName,
		Token:          ticket.Credentials.Token,
		Sign:           ticket.Credentials.Sign,
		ExpirationTime: expiration,
	}, nil
}
