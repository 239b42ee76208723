package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/facturasegura/backend/internal/domain/validation"
)

const maxResponseBytes = 10 << 20

// postEnvelope marshals one operation payload into a SOAP envelope, posts it
// and returns the raw body of the response envelope. SOAP faults and
// non-2xx statuses become typed errors; the caller parses the inner result.
func postEnvelope(ctx context.Context, client *http.Client, url, ns, action string, payload any) ([]byte, error) {
	raw, err := xml.Marshal(payload)
	if err != nil {
		return nil, formatErr("encoding soap payload", err)
	}

	env := requestEnvelope{EnvNS: soapEnvNS, OpNS: ns}
	env.Body.Payload = raw
	body, err := xml.Marshal(env)
	if err != nil {
		return nil, formatErr("encoding soap envelope", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), body...)))
	if err != nil {
		return nil, formatErr("building soap request", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	if action != "" {
		req.Header.Set("SOAPAction", action)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, connectivityErr("posting soap request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, connectivityErr("reading soap response", err)
	}

	var out responseEnvelope
	if err := xml.Unmarshal(data, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, validation.NewError(validation.KindConnectivity, fmt.Sprintf("%d", resp.StatusCode),
				fmt.Sprintf("soap endpoint returned status %d", resp.StatusCode))
		}
		return nil, formatErr("decoding soap envelope", err)
	}

	var fault soapFault
	if xml.Unmarshal(out.Body.Inner, &fault) == nil && fault.Message != "" {
		return nil, validation.NewError(validation.KindBusiness, fault.Code, fault.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, validation.NewError(validation.KindConnectivity, fmt.Sprintf("%d", resp.StatusCode),
			fmt.Sprintf("soap endpoint returned status %d", resp.StatusCode))
	}
	return out.Body.Inner, nil
}
