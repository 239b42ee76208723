package afip

import (
	"context"
	"encoding/base64"
)

// Signer produces the CMS payload WSAA expects from a login ticket request.
// Production deployments plug in a PKCS#7 signer backed by the fiscal
// certificate; tests and local environments use DevSigner.
type Signer interface {
	Sign(ctx context.Context, loginTicketRequest []byte) (string, error)
}

// DevSigner base64-encodes the ticket without a cryptographic signature.
// It only works against local stubs and the homologation simulator, never
// against the production authentication service.
type DevSigner struct{}

var _ Signer = (*DevSigner)(nil)

func (DevSigner) Sign(_ context.Context, loginTicketRequest []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(loginTicketRequest), nil
}
