package afip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturasegura/backend/internal/domain/validation"
)

func testCredential() *Credential {
	return &Credential{ServiceName: "wsfe", Token: "tok-1", Sign: "sig-1"}
}

func soapBody(inner string) string {
	return fmt.Sprintf(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>%s</soapenv:Body></soapenv:Envelope>`, inner)
}

func TestDummy(t *testing.T) {
	t.Run("all tiers healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, `text/xml; charset="utf-8"`, r.Header.Get("Content-Type"))
			assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FEDummy", r.Header.Get("SOAPAction"))
			fmt.Fprint(w, soapBody(`<FEDummyResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FEDummyResult><AppServer>OK</AppServer><DbServer>OK</DbServer><AuthServer>OK</AuthServer></FEDummyResult></FEDummyResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		result, err := gw.Dummy(context.Background())
		require.NoError(t, err)
		assert.True(t, result.OK())
	})

	t.Run("degraded tier reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<FEDummyResponse><FEDummyResult><AppServer>OK</AppServer><DbServer>DOWN</DbServer><AuthServer>OK</AuthServer></FEDummyResult></FEDummyResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		result, err := gw.Dummy(context.Background())
		require.NoError(t, err)
		assert.False(t, result.OK())
	})
}

func TestLookupInvoice(t *testing.T) {
	t.Run("found invoice carries its authorization code", func(t *testing.T) {
		var received string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			received = string(raw)
			fmt.Fprint(w, soapBody(`<FECompConsultarResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FECompConsultarResult><ResultGet><CbteDesde>1042</CbteDesde><CodAutorizacion>74123456789012</CodAutorizacion><EmisionTipo>CAE</EmisionTipo><FchVto>20260410</FchVto><Resultado>A</Resultado></ResultGet></FECompConsultarResult></FECompConsultarResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		result, err := gw.LookupInvoice(context.Background(), testCredential(), 1, 2, 1042)
		require.NoError(t, err)
		assert.Equal(t, "74123456789012", result.ResultGet.CodAutorizacion)
		assert.Equal(t, "20260410", result.ResultGet.FchVto)

		assert.Contains(t, received, "<ar:Token>tok-1</ar:Token>")
		assert.Contains(t, received, "<ar:Cuit>30000000007</ar:Cuit>")
		assert.Contains(t, received, "<ar:CbteNro>1042</ar:CbteNro>")
		assert.Contains(t, received, "<ar:CbteTipo>1</ar:CbteTipo>")
		assert.Contains(t, received, "<ar:PtoVta>2</ar:PtoVta>")
	})

	t.Run("service rejection becomes a business error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<FECompConsultarResponse><FECompConsultarResult><Errors><Err><Code>602</Code><Msg>No existen datos en nuestros registros</Msg></Err></Errors></FECompConsultarResult></FECompConsultarResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		_, err := gw.LookupInvoice(context.Background(), testCredential(), 1, 2, 9999)
		require.Error(t, err)
		assert.Equal(t, validation.KindBusiness, validation.KindOf(err))
		assert.False(t, validation.IsConnectivity(err))

		var typed *Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, "602", typed.Code)
	})

	t.Run("server error becomes a connectivity error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		_, err := gw.LookupInvoice(context.Background(), testCredential(), 1, 2, 1)
		require.Error(t, err)
		assert.True(t, validation.IsConnectivity(err))
	})

	t.Run("soap fault becomes a business error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, soapBody(`<soapenv:Fault><faultcode>soapenv:Client</faultcode><faultstring>token invalido</faultstring></soapenv:Fault>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		_, err := gw.LookupInvoice(context.Background(), testCredential(), 1, 2, 1)
		require.Error(t, err)
		assert.Equal(t, validation.KindBusiness, validation.KindOf(err))
		assert.Contains(t, err.Error(), "token invalido")
	})
}

func TestRequestCAE(t *testing.T) {
	t.Run("approved batch returns the issued codes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body := string(raw)
			assert.Contains(t, body, "<ar:CantReg>1</ar:CantReg>")
			assert.Contains(t, body, "<ar:ImpTotal>121.00</ar:ImpTotal>")
			fmt.Fprint(w, soapBody(`<FECAESolicitarResponse><FECAESolicitarResult><FeCabResp><CantReg>1</CantReg><Resultado>A</Resultado></FeCabResp><FeDetResp><FECAEDetResponse><CbteDesde>1</CbteDesde><CbteHasta>1</CbteHasta><Resultado>A</Resultado><CAE>74123456789012</CAE><CAEFchVto>20260410</CAEFchVto></FECAEDetResponse></FeDetResp></FECAESolicitarResult></FECAESolicitarResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		result, err := gw.RequestCAE(context.Background(), testCredential(), 2, 1, []FECAEDetRequest{{
			Concepto: 1, DocTipo: 80, DocNro: 20000000001,
			CbteDesde: 1, CbteHasta: 1, CbteFch: "20260310",
			ImpTotal: "121.00", ImpNeto: "100.00", ImpIVA: "21.00",
			MonID: "PES", MonCotiz: "1.00",
		}})
		require.NoError(t, err)
		require.Len(t, result.Details, 1)
		assert.Equal(t, "A", result.Details[0].Resultado)
		assert.Equal(t, "74123456789012", result.Details[0].CAE)
	})

	t.Run("top level errors reject the whole batch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<FECAESolicitarResponse><FECAESolicitarResult><Errors><Err><Code>10016</Code><Msg>Campo CbteFch invalido</Msg></Err></Errors></FECAESolicitarResult></FECAESolicitarResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		_, err := gw.RequestCAE(context.Background(), testCredential(), 2, 1, nil)
		require.Error(t, err)
		assert.Equal(t, validation.KindBusiness, validation.KindOf(err))
	})
}

func TestGetTaxpayer(t *testing.T) {
	t.Run("active company", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(raw), "<ar:idPersona>30000000007</ar:idPersona>")
			fmt.Fprint(w, soapBody(`<getPersonaResponse><personaReturn><persona><idPersona>30000000007</idPersona><tipoPersona>JURIDICA</tipoPersona><estadoClave>ACTIVO</estadoClave><razonSocial>ACME SA</razonSocial></persona></personaReturn></getPersonaResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		tp, err := gw.GetTaxpayer(context.Background(), testCredential(), "30000000007")
		require.NoError(t, err)
		assert.True(t, tp.Active)
		assert.Equal(t, "ACME SA", tp.Name)
		assert.Equal(t, "JURIDICA", tp.Kind)
	})

	t.Run("inactive individual uses the personal name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<getPersonaResponse><personaReturn><persona><tipoPersona>FISICA</tipoPersona><estadoClave>INACTIVO</estadoClave><nombre>JUAN</nombre><apellido>PEREZ</apellido></persona></personaReturn></getPersonaResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		tp, err := gw.GetTaxpayer(context.Background(), testCredential(), "20000000001")
		require.NoError(t, err)
		assert.False(t, tp.Active)
		assert.Equal(t, "JUAN PEREZ", tp.Name)
	})

	t.Run("registry error entries become a business error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<getPersonaResponse><personaReturn><errorConstancia><idPersona>20999999999</idPersona><error>No existe persona con ese Id</error></errorConstancia></personaReturn></getPersonaResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		_, err := gw.GetTaxpayer(context.Background(), testCredential(), "20999999999")
		require.Error(t, err)
		assert.Equal(t, validation.KindBusiness, validation.KindOf(err))
		assert.True(t, strings.Contains(err.Error(), "No existe persona"))
	})
}

func TestParameterTables(t *testing.T) {
	t.Run("invoice types", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "http://ar.gov.afip.dif.FEV1/FEParamGetTiposCbte", r.Header.Get("SOAPAction"))
			fmt.Fprint(w, soapBody(`<FEParamGetTiposCbteResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FEParamGetTiposCbteResult><ResultGet><CbteTipo><Id>1</Id><Desc>Factura A</Desc><FchDesde>20100917</FchDesde><FchHasta>NULL</FchHasta></CbteTipo><CbteTipo><Id>6</Id><Desc>Factura B</Desc><FchDesde>20100917</FchDesde><FchHasta>NULL</FchHasta></CbteTipo></ResultGet></FEParamGetTiposCbteResult></FEParamGetTiposCbteResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		types, err := gw.InvoiceTypes(context.Background(), testCredential())
		require.NoError(t, err)
		require.Len(t, types, 2)
		assert.Equal(t, 1, types[0].ID)
		assert.Equal(t, "Factura A", types[0].Desc)
	})

	t.Run("document types", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapBody(`<FEParamGetTiposDocResponse xmlns="http://ar.gov.afip.dif.FEV1/"><FEParamGetTiposDocResult><ResultGet><DocTipo><Id>80</Id><Desc>CUIT</Desc></DocTipo></ResultGet></FEParamGetTiposDocResult></FEParamGetTiposDocResponse>`))
		}))
		defer srv.Close()

		gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
		types, err := gw.DocumentTypes(context.Background(), testCredential())
		require.NoError(t, err)
		require.Len(t, types, 1)
		assert.Equal(t, 80, types[0].ID)
	})
}

func TestAuthorizeComplexInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)
		assert.Contains(t, body, "<ar:Desc>Percepcion IIBB</ar:Desc>")
		assert.Contains(t, body, "<ar:BaseImp>100.00</ar:BaseImp>")
		fmt.Fprint(w, soapBody(`<autorizarComprobanteComplejoResponse><autorizarComprobanteComplejoResult><Resultado>A</Resultado><CAE>74000000000001</CAE><CAEFchVto>20260410</CAEFchVto></autorizarComprobanteComplejoResult></autorizarComprobanteComplejoResponse>`))
	}))
	defer srv.Close()

	gw := NewSoapGateway(srv.URL, srv.URL, "30000000007")
	result, err := gw.AuthorizeComplexInvoice(context.Background(), testCredential(), ComplexInvoice{
		PointOfSale: 2, InvoiceType: 1, InvoiceNumber: 43, Date: "20260310",
		Total: "124.50", Net: "100.00",
		Taxes: []TributoItem{{ID: 7, Desc: "Percepcion IIBB", BaseImp: "100.00", Alic: "3.50", Importe: "3.50"}},
		VAT:   []AlicIva{{ID: 5, BaseImp: "100.00", Importe: "21.00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", result.Resultado)
	assert.Equal(t, "74000000000001", result.CAE)
}
