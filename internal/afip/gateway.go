package afip

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// defaultRequestTimeout bounds every SOAP round trip.
const defaultRequestTimeout = 30 * time.Second

// Taxpayer is the registry view of one CUIT.
type Taxpayer struct {
	CUIT   string
	Name   string
	Kind   string
	Active bool
}

// ComplexInvoice is the input to the complex authorization operation,
// carrying the itemized tax breakdown alongside the invoice identity.
type ComplexInvoice struct {
	PointOfSale   int
	InvoiceType   int
	InvoiceNumber int64
	Date          string
	Total         string
	Net           string
	Taxes         []TributoItem
	VAT           []AlicIva
}

// SoapGateway is the stateless WSFE/registry client. Each call builds the
// exact envelope for one operation, posts it with a bounded timeout and
// parses the typed result. Session credentials are supplied per call.
type SoapGateway struct {
	wsfeURL         string
	registryURL     string
	representedCUIT string
	client          *http.Client
	logger          *zap.Logger
}

// GatewayOption configures a SoapGateway.
type GatewayOption func(*SoapGateway)

func WithGatewayLogger(logger *zap.Logger) GatewayOption {
	return func(g *SoapGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(g *SoapGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// NewSoapGateway creates a gateway for the invoicing endpoint and the
// taxpayer registry endpoint. representedCUIT identifies the taxpayer on
// whose behalf every operation runs.
func NewSoapGateway(wsfeURL, registryURL, representedCUIT string, opts ...GatewayOption) *SoapGateway {
	g := &SoapGateway{
		wsfeURL:         wsfeURL,
		registryURL:     registryURL,
		representedCUIT: representedCUIT,
		client:          &http.Client{Timeout: defaultRequestTimeout},
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SoapGateway) auth(cred *Credential) Auth {
	return Auth{Token: cred.Token, Sign: cred.Sign, Cuit: g.representedCUIT}
}

func (g *SoapGateway) call(ctx context.Context, url, ns, operation string, payload, result any) error {
	action := ""
	if ns == wsfeNS {
		action = soapAction + operation
	}
	start := time.Now()
	inner, err := postEnvelope(ctx, g.client, url, ns, action, payload)
	elapsed := time.Since(start)
	if err != nil {
		g.logger.Warn("soap call failed",
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return err
	}
	if err := xml.Unmarshal(inner, result); err != nil {
		return formatErr("decoding "+operation+" response", err)
	}
	g.logger.Debug("soap call completed",
		zap.String("operation", operation),
		zap.Duration("elapsed", elapsed))
	return nil
}

// Dummy probes service health. It needs no credential.
func (g *SoapGateway) Dummy(ctx context.Context) (*FEDummyResult, error) {
	var resp feDummyResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "FEDummy", feDummyRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// RequestCAE submits invoice details for CAE issuance. A non-empty Errors
// list in the response is returned as a business error; per-detail
// rejections stay in the result for the caller to inspect.
func (g *SoapGateway) RequestCAE(ctx context.Context, cred *Credential, pointOfSale, invoiceType int, details []FECAEDetRequest) (*FECAESolicitarResult, error) {
	req := feCAESolicitarRequest{Auth: g.auth(cred)}
	req.FeCAEReq.FeCabReq.CantReg = len(details)
	req.FeCAEReq.FeCabReq.PtoVta = pointOfSale
	req.FeCAEReq.FeCabReq.CbteTipo = invoiceType
	req.FeCAEReq.FeDetReq.Details = details

	var resp feCAESolicitarResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "FECAESolicitar", req, &resp); err != nil {
		return nil, err
	}
	if err := businessErr(resp.Result.Errors); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// LookupInvoice fetches a previously authorized invoice so its CAE can be
// compared against the one a document claims.
func (g *SoapGateway) LookupInvoice(ctx context.Context, cred *Credential, invoiceType, pointOfSale int, number int64) (*FECompConsultarResult, error) {
	req := feCompConsultarRequest{Auth: g.auth(cred)}
	req.FeCompConsReq.CbteTipo = invoiceType
	req.FeCompConsReq.PtoVta = pointOfSale
	req.FeCompConsReq.CbteNro = number

	var resp feCompConsultarResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "FECompConsultar", req, &resp); err != nil {
		return nil, err
	}
	if err := businessErr(resp.Result.Errors); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// InvoiceTypes fetches the invoice type parameter table.
func (g *SoapGateway) InvoiceTypes(ctx context.Context, cred *Credential) ([]ParamType, error) {
	var resp feParamGetTiposCbteResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "FEParamGetTiposCbte", feParamGetTiposCbteRequest{Auth: g.auth(cred)}, &resp); err != nil {
		return nil, err
	}
	if err := businessErr(resp.Result.Errors); err != nil {
		return nil, err
	}
	return resp.Result.ResultGet.Types, nil
}

// DocumentTypes fetches the identity document type parameter table.
func (g *SoapGateway) DocumentTypes(ctx context.Context, cred *Credential) ([]ParamType, error) {
	var resp feParamGetTiposDocResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "FEParamGetTiposDoc", feParamGetTiposDocRequest{Auth: g.auth(cred)}, &resp); err != nil {
		return nil, err
	}
	if err := businessErr(resp.Result.Errors); err != nil {
		return nil, err
	}
	return resp.Result.ResultGet.Types, nil
}

// GetTaxpayer looks a CUIT up in the registry service. A missing or revoked
// record is a business error, not a transport failure.
func (g *SoapGateway) GetTaxpayer(ctx context.Context, cred *Credential, cuit string) (*Taxpayer, error) {
	req := getPersonaRequest{
		Token:            cred.Token,
		Sign:             cred.Sign,
		CuitRepresentada: g.representedCUIT,
		IDPersona:        cuit,
	}

	var resp getPersonaResponse
	if err := g.call(ctx, g.registryURL, padronNS, "getPersona", req, &resp); err != nil {
		return nil, err
	}
	if errs := resp.Return.ErrorConstancia.Errors; len(errs) > 0 {
		return nil, validation.NewError(validation.KindBusiness, "registry", strings.Join(errs, "; "))
	}

	p := resp.Return.Persona
	name := p.RazonSocial
	if name == "" {
		name = strings.TrimSpace(p.Nombre + " " + p.Apellido)
	}
	return &Taxpayer{
		CUIT:   cuit,
		Name:   name,
		Kind:   p.TipoPersona,
		Active: strings.EqualFold(p.EstadoClave, "ACTIVO"),
	}, nil
}

// AuthorizeComplexInvoice authorizes an invoice whose tax breakdown needs
// the itemized operation instead of the batch CAE request.
func (g *SoapGateway) AuthorizeComplexInvoice(ctx context.Context, cred *Credential, inv ComplexInvoice) (*AutorizarComprobanteComplejoResult, error) {
	req := autorizarComprobanteComplejoRequest{Auth: g.auth(cred)}
	req.Comprobante.PtoVta = inv.PointOfSale
	req.Comprobante.CbteTipo = inv.InvoiceType
	req.Comprobante.CbteNro = inv.InvoiceNumber
	req.Comprobante.CbteFch = inv.Date
	req.Comprobante.ImpTotal = inv.Total
	req.Comprobante.ImpNeto = inv.Net
	req.Comprobante.Tributos = inv.Taxes
	req.Comprobante.IVAItems = inv.VAT

	var resp autorizarComprobanteComplejoResponse
	if err := g.call(ctx, g.wsfeURL, wsfeNS, "autorizarComprobanteComplejo", req, &resp); err != nil {
		return nil, err
	}
	if err := businessErr(resp.Result.Errors); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}
