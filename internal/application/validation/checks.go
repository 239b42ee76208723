package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// invoiceTypeCodes maps the letter classes extracted from documents to the
// numeric comprobante type codes of the fiscal web service.
var invoiceTypeCodes = map[string]int{
	"A": 1,
	"B": 6,
	"C": 11,
	"E": 19,
	"M": 51,
}

// ValidateCUIT runs the standalone taxpayer identifier check used by the
// single-check endpoint. Connectivity degradation yields the advisory
// fallback result, same as inside a full run.
func (o *Orchestrator) ValidateCUIT(ctx context.Context, cuit string) (*validation.Result, error) {
	result, _, err := o.checkCUIT(ctx, &validation.DocumentData{CUIT: cuit})
	return result, err
}

// ValidateCAE runs the standalone authorization code check. The optional
// document supplies the invoice context for a remote lookup.
func (o *Orchestrator) ValidateCAE(ctx context.Context, cae string, doc *validation.DocumentData) (*validation.Result, error) {
	if doc == nil {
		doc = &validation.DocumentData{}
	}
	doc.CAE = cae
	result, _, err := o.checkCAE(ctx, doc)
	return result, err
}

// checkCUIT validates the taxpayer identifier. The remote registry is
// authoritative; the local check digit only serves as an advisory fallback
// when the registry cannot be reached.
func (o *Orchestrator) checkCUIT(ctx context.Context, doc *validation.DocumentData) (*validation.Result, bool, error) {
	start := time.Now()
	finish := func(r *validation.Result) *validation.Result {
		r.ResponseTimeMs = time.Since(start).Milliseconds()
		r.ValidatedAt = time.Now()
		return r
	}

	if doc.CUIT == "" {
		return finish(&validation.Result{
			Valid:    false,
			Error:    "document has no CUIT",
			Severity: validation.SeverityWarning,
		}), false, nil
	}
	cuit := validation.NormalizeCUIT(doc.CUIT)
	if !validation.ValidCUITFormat(cuit) {
		return finish(&validation.Result{
			Valid:    false,
			Error:    fmt.Sprintf("CUIT %q is not an 11-digit identifier", doc.CUIT),
			Severity: validation.SeverityWarning,
		}), false, nil
	}

	key := "cuit_validation_" + cuit
	if cached := o.cacheGet(ctx, key, validation.CacheTypeCUIT); cached != nil {
		return finish(cached), false, nil
	}

	checksumOK := validation.ValidateCUITChecksum(cuit)

	cred, err := o.creds.Authenticate(ctx, o.serviceName)
	if err != nil {
		if validation.IsConnectivity(err) {
			return finish(o.checksumFallback(cuit, checksumOK)), true, nil
		}
		return nil, false, err
	}

	taxpayer, err := o.gateway.GetTaxpayer(ctx, cred, cuit)
	if err != nil {
		if validation.IsConnectivity(err) {
			return finish(o.checksumFallback(cuit, checksumOK)), true, nil
		}
		// Explicit registry rejection: the CUIT does not identify a taxpayer
		result := finish(&validation.Result{
			Valid:    false,
			Error:    err.Error(),
			Severity: validation.SeverityError,
		})
		o.cacheSet(ctx, key, result, validation.CacheTypeCUIT)
		return result, false, nil
	}

	result := &validation.Result{Valid: taxpayer.Active, Severity: validation.SeverityInfo}
	if !taxpayer.Active {
		result.Error = fmt.Sprintf("taxpayer %s is not active in the registry", cuit)
		result.Severity = validation.SeverityError
	} else if !checksumOK {
		result.Note = "check digit mismatch tolerated, registry record is authoritative"
	}
	finish(result)
	o.cacheSet(ctx, key, result, validation.CacheTypeCUIT)
	return result, false, nil
}

func (o *Orchestrator) checksumFallback(cuit string, checksumOK bool) *validation.Result {
	result := &validation.Result{
		Valid:    checksumOK,
		Severity: validation.SeverityWarning,
		Note:     "registry unreachable, check digit verification only",
	}
	if !checksumOK {
		result.Error = fmt.Sprintf("CUIT %s fails the check digit verification", cuit)
	}
	return result
}

// checkCAE validates the electronic authorization code. With full invoice
// context the code is compared against the remote invoice lookup; otherwise
// a heuristic date-window estimate is produced, flagged non-authoritative.
func (o *Orchestrator) checkCAE(ctx context.Context, doc *validation.DocumentData) (*validation.Result, bool, error) {
	start := time.Now()
	finish := func(r *validation.Result) *validation.Result {
		r.ResponseTimeMs = time.Since(start).Milliseconds()
		r.ValidatedAt = time.Now()
		return r
	}

	if doc.CAE == "" {
		return finish(&validation.Result{
			Valid:    false,
			Error:    "document has no CAE",
			Severity: validation.SeverityWarning,
		}), false, nil
	}
	if !validation.ValidCAEFormat(doc.CAE) {
		return finish(&validation.Result{
			Valid:    false,
			Error:    fmt.Sprintf("CAE %q is not a 14-digit code", doc.CAE),
			Severity: validation.SeverityWarning,
		}), false, nil
	}

	cuit := validation.NormalizeCUIT(doc.CUIT)
	key := fmt.Sprintf("cae_validation_%s_%s", doc.CAE, cuit)
	if cached := o.cacheGet(ctx, key, validation.CacheTypeCAE); cached != nil {
		return finish(cached), false, nil
	}

	if doc.HasInvoiceContext() {
		result, degraded, err := o.lookupCAE(ctx, doc)
		if err != nil {
			return nil, false, err
		}
		if result != nil {
			finish(result)
			o.cacheSet(ctx, key, result, validation.CacheTypeCAE)
			return result, degraded, nil
		}
		// nil result means the lookup could not run; fall through to the
		// estimate, carrying the degraded flag
		return finish(o.estimateCAE(doc.CAE)), degraded, nil
	}

	return finish(o.estimateCAE(doc.CAE)), false, nil
}

// lookupCAE consults the remote invoice lookup and compares the authorized
// code. A nil result with no error means the caller should fall back to the
// heuristic estimate.
func (o *Orchestrator) lookupCAE(ctx context.Context, doc *validation.DocumentData) (*validation.Result, bool, error) {
	invoiceType, ok := invoiceTypeCode(doc.InvoiceType)
	if !ok {
		o.logger.Debug("unrecognized invoice type, using estimate",
			zap.String("document_id", doc.ID),
			zap.String("invoice_type", doc.InvoiceType))
		return nil, false, nil
	}
	pointOfSale, number, err := parseInvoiceNumber(doc.InvoiceNumber)
	if err != nil {
		o.logger.Debug("unparseable invoice number, using estimate",
			zap.String("document_id", doc.ID),
			zap.String("invoice_number", doc.InvoiceNumber))
		return nil, false, nil
	}

	cred, err := o.creds.Authenticate(ctx, o.serviceName)
	if err != nil {
		if validation.IsConnectivity(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	lookup, err := o.gateway.LookupInvoice(ctx, cred, invoiceType, pointOfSale, number)
	if err != nil {
		if validation.IsConnectivity(err) {
			return nil, true, nil
		}
		// The service explicitly rejected the lookup: no such invoice
		return &validation.Result{
			Valid:    false,
			Error:    err.Error(),
			Severity: validation.SeverityError,
		}, false, nil
	}

	if lookup.ResultGet.CodAutorizacion != doc.CAE {
		return &validation.Result{
			Valid:    false,
			Error:    fmt.Sprintf("CAE does not match the authorized code for invoice %s", doc.InvoiceNumber),
			Severity: validation.SeverityError,
		}, false, nil
	}
	result := &validation.Result{Valid: true, Severity: validation.SeverityInfo}
	if lookup.ResultGet.FchVto != "" {
		result.Note = "CAE valid until " + lookup.ResultGet.FchVto
	}
	return result, false, nil
}

// estimateCAE derives a heuristic verdict from the date window embedded in
// the code. Never authoritative, always warning-level.
func (o *Orchestrator) estimateCAE(cae string) *validation.Result {
	until, err := validation.EstimatedCAEValidUntil(cae)
	if err != nil {
		return &validation.Result{
			Valid:               false,
			Error:               err.Error(),
			Severity:            validation.SeverityWarning,
			EstimatedValidation: true,
		}
	}
	return &validation.Result{
		Valid:               time.Now().Before(until),
		Severity:            validation.SeverityWarning,
		EstimatedValidation: true,
		Note:                fmt.Sprintf("date-window estimate (until %s), not verified against the fiscal authority", until.Format("2006-01-02")),
	}
}

// checkDuplicate looks for previously completed documents carrying the same
// invoice number, CUIT and calendar date.
func (o *Orchestrator) checkDuplicate(ctx context.Context, doc *validation.DocumentData) (*validation.DuplicateCheck, error) {
	start := time.Now()
	if doc.InvoiceNumber == "" || doc.CUIT == "" || doc.Date == nil {
		return &validation.DuplicateCheck{
			IsDuplicate:    false,
			Severity:       validation.SeverityInfo,
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	count, err := o.documents.CountDuplicates(ctx, doc.InvoiceNumber, validation.NormalizeCUIT(doc.CUIT), *doc.Date, doc.ID)
	if err != nil {
		return nil, err
	}

	severity := validation.SeverityInfo
	if count > 0 {
		severity = validation.SeverityWarning
	}
	return &validation.DuplicateCheck{
		IsDuplicate:    count > 0,
		DuplicateCount: count,
		Severity:       severity,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// checkTax runs the arithmetic consistency checks. Documents without the
// three amounts have nothing to verify and pass trivially.
func (o *Orchestrator) checkTax(doc *validation.DocumentData) *validation.TaxConsistency {
	start := time.Now()
	if !doc.HasAmounts() {
		return &validation.TaxConsistency{
			Valid:          true,
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	}
	issues := validation.CheckTaxConsistency(*doc.Subtotal, *doc.IVA, *doc.TotalAmount)
	return &validation.TaxConsistency{
		Valid:          len(issues) == 0,
		Issues:         issues,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
}

// cacheGet returns a cached sub-result with FromCache set, or nil. Cache
// failures are logged and treated as misses.
func (o *Orchestrator) cacheGet(ctx context.Context, key string, ctype validation.CacheType) *validation.Result {
	if o.cache == nil {
		return nil
	}
	raw, found, err := o.cache.Get(ctx, key, ctype)
	if err != nil {
		o.logger.Warn("cache read failed, falling through to live check",
			zap.String("key", key),
			zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var result validation.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		o.logger.Warn("discarding undecodable cache entry",
			zap.String("key", key),
			zap.Error(err))
		return nil
	}
	result.FromCache = true
	return &result
}

func (o *Orchestrator) cacheSet(ctx context.Context, key string, result *validation.Result, ctype validation.CacheType) {
	if o.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		o.logger.Warn("failed to serialize cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := o.cache.Set(ctx, key, raw, ctype); err != nil {
		o.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invoiceTypeCode resolves a document's invoice type, either a letter class
// or an explicit numeric code.
func invoiceTypeCode(raw string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if code, ok := invoiceTypeCodes[s]; ok {
		return code, true
	}
	if code, err := strconv.Atoi(s); err == nil && code > 0 {
		return code, true
	}
	return 0, false
}

// parseInvoiceNumber splits the printed "0001-00001042" form into the point
// of sale and the sequential number.
func parseInvoiceNumber(raw string) (pointOfSale int, number int64, err error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invoice number %q is not in point-of-sale form", raw)
	}
	pointOfSale, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invoice number %q has no numeric point of sale", raw)
	}
	number, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invoice number %q has no numeric sequence", raw)
	}
	return pointOfSale, number, nil
}
