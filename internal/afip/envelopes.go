// Package afip implements the SOAP clients for the fiscal authority's
// authentication (WSAA) and electronic invoicing (WSFE) services. Envelope
// field names, nesting and ordering reproduce the published service
// definitions exactly; they are an external fixed contract.
package afip

import "encoding/xml"

// soap envelope namespaces fixed by the published WSDLs
const (
	soapEnvNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	wsfeNS     = "http://ar.gov.afip.dif.FEV1/"
	wsaaNS     = "http://wsaa.view.sua.dvadac.desein.afip.gov"
	padronNS   = "http://a5.soap.ws.server.puc.sr/"
	soapAction = "http://ar.gov.afip.dif.FEV1/"
)

// requestEnvelope wraps one operation payload for transport. The payload is
// pre-marshaled so each operation controls its own element order.
type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	EnvNS   string   `xml:"xmlns:soapenv,attr"`
	OpNS    string   `xml:"xmlns:ar,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    requestBody
}

type requestBody struct {
	XMLName xml.Name `xml:"soapenv:Body"`
	Payload []byte   `xml:",innerxml"`
}

// responseEnvelope captures the body of any SOAP response for a second
// unmarshaling pass into the operation-specific result type.
type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// soapFault is the standard SOAP fault body
type soapFault struct {
	XMLName xml.Name `xml:"Fault"`
	Code    string   `xml:"faultcode"`
	Message string   `xml:"faultstring"`
}

// ---- WSAA (authentication) ----

// LoginTicketRequest is the TRA document signed and submitted to WSAA
type LoginTicketRequest struct {
	XMLName xml.Name               `xml:"loginTicketRequest"`
	Version string                 `xml:"version,attr"`
	Header  LoginTicketHeader      `xml:"header"`
	Service string                 `xml:"service"`
}

// LoginTicketHeader carries the unique ID and validity window of a TRA
type LoginTicketHeader struct {
	UniqueID       uint32 `xml:"uniqueId"`
	GenerationTime string `xml:"generationTime"`
	ExpirationTime string `xml:"expirationTime"`
}

// loginCmsRequest is the WSAA loginCms operation payload
type loginCmsRequest struct {
	XMLName xml.Name `xml:"ar:loginCms"`
	In0     string   `xml:"ar:in0"`
}

// loginCmsResponse carries the escaped login ticket response XML
type loginCmsResponse struct {
	XMLName xml.Name `xml:"loginCmsResponse"`
	Return  string   `xml:"loginCmsReturn"`
}

// LoginTicketResponse is the decoded WSAA session grant
type LoginTicketResponse struct {
	XMLName xml.Name `xml:"loginTicketResponse"`
	Header  struct {
		Source         string `xml:"source"`
		Destination    string `xml:"destination"`
		UniqueID       uint32 `xml:"uniqueId"`
		GenerationTime string `xml:"generationTime"`
		ExpirationTime string `xml:"expirationTime"`
	} `xml:"header"`
	Credentials struct {
		Token string `xml:"token"`
		Sign  string `xml:"sign"`
	} `xml:"credentials"`
}

// ---- WSFE (electronic invoicing) ----

// Auth is the session block every WSFE operation carries
type Auth struct {
	Token string `xml:"ar:Token"`
	Sign  string `xml:"ar:Sign"`
	Cuit  string `xml:"ar:Cuit"`
}

// Err is one business error entry returned inside a response body.
// A non-empty error list is an explicit rejection, not a transport failure.
type Err struct {
	Code int    `xml:"Code"`
	Msg  string `xml:"Msg"`
}

// Evt is one advisory event entry returned inside a response body
type Evt struct {
	Code int    `xml:"Code"`
	Msg  string `xml:"Msg"`
}

// feDummyRequest probes service health
type feDummyRequest struct {
	XMLName xml.Name `xml:"ar:FEDummy"`
}

// FEDummyResult reports the health of the three server tiers
type FEDummyResult struct {
	AppServer  string `xml:"AppServer"`
	DbServer   string `xml:"DbServer"`
	AuthServer string `xml:"AuthServer"`
}

type feDummyResponse struct {
	XMLName xml.Name      `xml:"FEDummyResponse"`
	Result  FEDummyResult `xml:"FEDummyResult"`
}

// OK reports whether every server tier answered OK
func (r *FEDummyResult) OK() bool {
	return r.AppServer == "OK" && r.DbServer == "OK" && r.AuthServer == "OK"
}

// feCAESolicitarRequest requests CAE issuance for a batch of invoices
type feCAESolicitarRequest struct {
	XMLName xml.Name `xml:"ar:FECAESolicitar"`
	Auth    Auth     `xml:"ar:Auth"`
	FeCAEReq struct {
		FeCabReq struct {
			CantReg  int `xml:"ar:CantReg"`
			PtoVta   int `xml:"ar:PtoVta"`
			CbteTipo int `xml:"ar:CbteTipo"`
		} `xml:"ar:FeCabReq"`
		FeDetReq struct {
			Details []FECAEDetRequest `xml:"ar:FECAEDetRequest"`
		} `xml:"ar:FeDetReq"`
	} `xml:"ar:FeCAEReq"`
}

// FECAEDetRequest is one invoice line of a CAE issuance request
type FECAEDetRequest struct {
	Concepto   int    `xml:"ar:Concepto"`
	DocTipo    int    `xml:"ar:DocTipo"`
	DocNro     int64  `xml:"ar:DocNro"`
	CbteDesde  int64  `xml:"ar:CbteDesde"`
	CbteHasta  int64  `xml:"ar:CbteHasta"`
	CbteFch    string `xml:"ar:CbteFch"`
	ImpTotal   string `xml:"ar:ImpTotal"`
	ImpTotConc string `xml:"ar:ImpTotConc"`
	ImpNeto    string `xml:"ar:ImpNeto"`
	ImpOpEx    string `xml:"ar:ImpOpEx"`
	ImpTrib    string `xml:"ar:ImpTrib"`
	ImpIVA     string `xml:"ar:ImpIVA"`
	MonID      string `xml:"ar:MonId"`
	MonCotiz   string `xml:"ar:MonCotiz"`
	IVAItems   []AlicIva `xml:"ar:Iva>ar:AlicIva,omitempty"`
}

// AlicIva is one VAT rate line
type AlicIva struct {
	ID      int    `xml:"ar:Id"`
	BaseImp string `xml:"ar:BaseImp"`
	Importe string `xml:"ar:Importe"`
}

// FECAEDetResponse is one issued (or rejected) invoice line
type FECAEDetResponse struct {
	Concepto   int    `xml:"Concepto"`
	DocTipo    int    `xml:"DocTipo"`
	DocNro     int64  `xml:"DocNro"`
	CbteDesde  int64  `xml:"CbteDesde"`
	CbteHasta  int64  `xml:"CbteHasta"`
	Resultado  string `xml:"Resultado"`
	CAE        string `xml:"CAE"`
	CAEFchVto  string `xml:"CAEFchVto"`
	Observations []Err `xml:"Observaciones>Obs"`
}

// FECAESolicitarResult is the parsed issuance outcome
type FECAESolicitarResult struct {
	Header struct {
		CantReg   int    `xml:"CantReg"`
		PtoVta    int    `xml:"PtoVta"`
		CbteTipo  int    `xml:"CbteTipo"`
		Resultado string `xml:"Resultado"`
		FchProceso string `xml:"FchProceso"`
	} `xml:"FeCabResp"`
	Details []FECAEDetResponse `xml:"FeDetResp>FECAEDetResponse"`
	Errors  []Err              `xml:"Errors>Err"`
	Events  []Evt              `xml:"Events>Evt"`
}

type feCAESolicitarResponse struct {
	XMLName xml.Name             `xml:"FECAESolicitarResponse"`
	Result  FECAESolicitarResult `xml:"FECAESolicitarResult"`
}

// feCompConsultarRequest looks up a previously authorized invoice
type feCompConsultarRequest struct {
	XMLName xml.Name `xml:"ar:FECompConsultar"`
	Auth    Auth     `xml:"ar:Auth"`
	FeCompConsReq struct {
		CbteTipo int   `xml:"ar:CbteTipo"`
		CbteNro  int64 `xml:"ar:CbteNro"`
		PtoVta   int   `xml:"ar:PtoVta"`
	} `xml:"ar:FeCompConsReq"`
}

// FECompConsultarResult is the parsed invoice lookup outcome
type FECompConsultarResult struct {
	ResultGet struct {
		Concepto        int    `xml:"Concepto"`
		DocTipo         int    `xml:"DocTipo"`
		DocNro          int64  `xml:"DocNro"`
		CbteDesde       int64  `xml:"CbteDesde"`
		CbteHasta       int64  `xml:"CbteHasta"`
		CbteFch         string `xml:"CbteFch"`
		ImpTotal        string `xml:"ImpTotal"`
		CodAutorizacion string `xml:"CodAutorizacion"`
		EmisionTipo     string `xml:"EmisionTipo"`
		FchVto          string `xml:"FchVto"`
		FchProceso      string `xml:"FchProceso"`
		Resultado       string `xml:"Resultado"`
	} `xml:"ResultGet"`
	Errors []Err `xml:"Errors>Err"`
}

type feCompConsultarResponse struct {
	XMLName xml.Name              `xml:"FECompConsultarResponse"`
	Result  FECompConsultarResult `xml:"FECompConsultarResult"`
}

// feParamGetTiposCbteRequest lists the invoice types the service accepts
type feParamGetTiposCbteRequest struct {
	XMLName xml.Name `xml:"ar:FEParamGetTiposCbte"`
	Auth    Auth     `xml:"ar:Auth"`
}

// ParamType is one parameter table entry (invoice types, document types)
type ParamType struct {
	ID       int    `xml:"Id"`
	Desc     string `xml:"Desc"`
	FchDesde string `xml:"FchDesde"`
	FchHasta string `xml:"FchHasta"`
}

// FEParamGetTiposCbteResult is the parsed invoice-type table
type FEParamGetTiposCbteResult struct {
	ResultGet struct {
		Types []ParamType `xml:"CbteTipo"`
	} `xml:"ResultGet"`
	Errors []Err `xml:"Errors>Err"`
}

type feParamGetTiposCbteResponse struct {
	XMLName xml.Name                  `xml:"FEParamGetTiposCbteResponse"`
	Result  FEParamGetTiposCbteResult `xml:"FEParamGetTiposCbteResult"`
}

// feParamGetTiposDocRequest lists accepted identity document types
type feParamGetTiposDocRequest struct {
	XMLName xml.Name `xml:"ar:FEParamGetTiposDoc"`
	Auth    Auth     `xml:"ar:Auth"`
}

// FEParamGetTiposDocResult is the parsed document-type table
type FEParamGetTiposDocResult struct {
	ResultGet struct {
		Types []ParamType `xml:"DocTipo"`
	} `xml:"ResultGet"`
	Errors []Err `xml:"Errors>Err"`
}

type feParamGetTiposDocResponse struct {
	XMLName xml.Name                 `xml:"FEParamGetTiposDocResponse"`
	Result  FEParamGetTiposDocResult `xml:"FEParamGetTiposDocResult"`
}

// getPersonaRequest looks up a taxpayer in the registry service
type getPersonaRequest struct {
	XMLName          xml.Name `xml:"ar:getPersona"`
	Token            string   `xml:"ar:token"`
	Sign             string   `xml:"ar:sign"`
	CuitRepresentada string   `xml:"ar:cuitRepresentada"`
	IDPersona        string   `xml:"ar:idPersona"`
}

// personaReturn is the registry record for one taxpayer
type personaReturn struct {
	Persona struct {
		IDPersona   int64  `xml:"idPersona"`
		TipoPersona string `xml:"tipoPersona"`
		EstadoClave string `xml:"estadoClave"`
		RazonSocial string `xml:"razonSocial"`
		Nombre      string `xml:"nombre"`
		Apellido    string `xml:"apellido"`
	} `xml:"persona"`
	ErrorConstancia struct {
		IDPersona int64    `xml:"idPersona"`
		Errors    []string `xml:"error"`
	} `xml:"errorConstancia"`
}

type getPersonaResponse struct {
	XMLName xml.Name      `xml:"getPersonaResponse"`
	Return  personaReturn `xml:"personaReturn"`
}

// autorizarComprobanteComplejoRequest authorizes an invoice with an
// itemized tax breakdown through the complex-invoice service
type autorizarComprobanteComplejoRequest struct {
	XMLName xml.Name `xml:"ar:autorizarComprobanteComplejo"`
	Auth    Auth     `xml:"ar:Auth"`
	Comprobante struct {
		PtoVta    int               `xml:"ar:PtoVta"`
		CbteTipo  int               `xml:"ar:CbteTipo"`
		CbteNro   int64             `xml:"ar:CbteNro"`
		CbteFch   string            `xml:"ar:CbteFch"`
		ImpTotal  string            `xml:"ar:ImpTotal"`
		ImpNeto   string            `xml:"ar:ImpNeto"`
		Tributos  []TributoItem     `xml:"ar:Tributos>ar:Tributo,omitempty"`
		IVAItems  []AlicIva         `xml:"ar:Iva>ar:AlicIva,omitempty"`
	} `xml:"ar:Comprobante"`
}

// TributoItem is one itemized non-VAT tax line
type TributoItem struct {
	ID      int    `xml:"ar:Id"`
	Desc    string `xml:"ar:Desc"`
	BaseImp string `xml:"ar:BaseImp"`
	Alic    string `xml:"ar:Alic"`
	Importe string `xml:"ar:Importe"`
}

// AutorizarComprobanteComplejoResult is the parsed complex authorization
type AutorizarComprobanteComplejoResult struct {
	Resultado string `xml:"Resultado"`
	CAE       string `xml:"CAE"`
	CAEFchVto string `xml:"CAEFchVto"`
	Errors    []Err  `xml:"Errors>Err"`
	Events    []Evt  `xml:"Events>Evt"`
}

type autorizarComprobanteComplejoResponse struct {
	XMLName xml.Name                           `xml:"autorizarComprobanteComplejoResponse"`
	Result  AutorizarComprobanteComplejoResult `xml:"autorizarComprobanteComplejoResult"`
}
