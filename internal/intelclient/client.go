// Package intelclient is the reference implementation of the
// collateral-fetch hooks a verifier Config can supply (spec §4.H): it
// fetches TCB Info, QE Identity, the SGX root CA, and CRLs from
// Intel's Provisioning Certification Service, with LRU caching and
// rate limiting. It is not part of the verification core — core code
// in internal/decode, internal/certchain, internal/quotesig, and
// internal/collateral never makes network calls.
package intelclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/r3e-network/qvl/internal/certchain"
	"github.com/r3e-network/qvl/internal/decode"
	"github.com/r3e-network/qvl/internal/quotesig"
)

const (
	defaultBaseURL = "https://api.trustedservices.intel.com/sgx/certification/v4"

	pathTcbInfo    = "/tcb"
	pathQeIdentity = "/qe/identity"
	pathPckCrl     = "/pckcrl"
	pathRootCACRL  = "/rootcacrl"

	defaultCacheSize = 256
	defaultCacheTTL  = 12 * time.Hour

	defaultRequestsPerMinute = 60.0
	defaultBurst             = 5
)

// CollateralUnavailable is raised whenever a fetch from Intel's PCS
// fails for any reason: network error, non-200 status, or malformed
// response body. This is the one error kind the verification core
// never raises itself (spec §7) — it is reserved for collateral-fetch
// hooks like this client.
type CollateralUnavailable struct {
	Kind  string // "tcb_info", "qe_identity", "root_ca", "crl"
	Cause error
}

func (e *CollateralUnavailable) Error() string {
	return fmt.Sprintf("intelclient: %s unavailable: %v", e.Kind, e.Cause)
}

func (e *CollateralUnavailable) Unwrap() error { return e.Cause }

type cacheEntry struct {
	body    []byte
	header  http.Header
	fetched time.Time
}

// Client fetches and caches Intel PCS collateral for use as
// verification hooks.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger

	cache    *lru.Cache[string, *cacheEntry]
	cacheTTL time.Duration
	limiter  *rate.Limiter

	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides Intel's default PCS base URL, for pointing at
// a different collateral service (e.g. Azure's or a test double).
func WithBaseURL(url string) Option { return func(c *Client) { c.baseURL = url } }

// WithRateLimit overrides the default requests-per-minute and burst.
func WithRateLimit(perMinute float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
	}
}

// WithHTTPClient overrides the default *http.Client (e.g. to set a
// custom transport or timeout).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// New creates a Client with a 256-entry/12-hour LRU cache and a
// 60-request-per-minute limiter, matching the defaults a deployment
// would otherwise hand-configure.
func New(opts ...Option) *Client {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cache, err := lru.New[string, *cacheEntry](defaultCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size; defaultCacheSize
		// is a positive constant, so this is unreachable in practice.
		logger.WithError(err).Error("failed to create collateral cache")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		log:        logger,
		cache:      cache,
		cacheTTL:   defaultCacheTTL,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerMinute/60.0), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetch performs a rate-limited, cached GET against c.baseURL+path.
func (c *Client) fetch(ctx context.Context, kind, path string) ([]byte, http.Header, error) {
	key := path

	c.mu.Lock()
	if c.cache != nil {
		if entry, ok := c.cache.Get(key); ok && time.Since(entry.fetched) < c.cacheTTL {
			c.mu.Unlock()
			c.log.WithField("path", path).Debug("collateral cache hit")
			return entry.body, entry.header, nil
		}
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, &CollateralUnavailable{Kind: kind, Cause: fmt.Errorf("rate limit wait: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, &CollateralUnavailable{Kind: kind, Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &CollateralUnavailable{Kind: kind, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &CollateralUnavailable{Kind: kind, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &CollateralUnavailable{Kind: kind, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	c.mu.Lock()
	if c.cache != nil {
		c.cache.Add(key, &cacheEntry{body: body, header: resp.Header, fetched: time.Now()})
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"path": path, "bytes": len(body)}).Info("fetched collateral")
	return body, resp.Header, nil
}

// FetchTcbInfo retrieves the raw TCB Info JSON envelope for fmspc and
// verifies it against the issuer chain carried in the
// TCB-Info-Issuer-Chain response header before handing it back.
// Callers unmarshal the returned bytes into collateral.TcbInfo.
func (c *Client) FetchTcbInfo(ctx context.Context, fmspc string) ([]byte, error) {
	body, header, err := c.fetch(ctx, "tcb_info", fmt.Sprintf("%s?fmspc=%s", pathTcbInfo, fmspc))
	if err != nil {
		return nil, err
	}
	if err := c.verifyEnvelope(body, "tcbInfo", header.Get("TCB-Info-Issuer-Chain")); err != nil {
		return nil, &CollateralUnavailable{Kind: "tcb_info", Cause: err}
	}
	return body, nil
}

// FetchQeIdentity retrieves the raw QE Identity JSON envelope and
// verifies it against the issuer chain carried in the
// SGX-Enclave-Identity-Issuer-Chain response header. Callers unmarshal
// the returned bytes into collateral.QeIdentity.
func (c *Client) FetchQeIdentity(ctx context.Context) ([]byte, error) {
	body, header, err := c.fetch(ctx, "qe_identity", pathQeIdentity)
	if err != nil {
		return nil, err
	}
	if err := c.verifyEnvelope(body, "enclaveIdentity", header.Get("SGX-Enclave-Identity-Issuer-Chain")); err != nil {
		return nil, &CollateralUnavailable{Kind: "qe_identity", Cause: err}
	}
	return body, nil
}

// FetchPckCrl retrieves the DER-encoded CRL for the PCK platform or
// processor CA named by ca ("platform" or "processor").
func (c *Client) FetchPckCrl(ctx context.Context, ca string) ([]byte, error) {
	body, _, err := c.fetch(ctx, "crl", fmt.Sprintf("%s?ca=%s&encoding=der", pathPckCrl, ca))
	return body, err
}

// FetchRootCACRL retrieves the DER-encoded CRL for Intel's root CA.
func (c *Client) FetchRootCACRL(ctx context.Context) ([]byte, error) {
	body, _, err := c.fetch(ctx, "crl", pathRootCACRL+"?encoding=der")
	return body, err
}

// verifyEnvelope checks the detached signature Intel PCS attaches to
// TCB Info and QE Identity responses: the JSON body carries a
// top-level "signature" field (raw r||s hex) over the literal bytes of
// the fieldName object, and issuerChainHeader carries the PEM chain
// that signed it (leaf first). This is extra diligence the core
// (internal/collateral) deliberately never performs — it trusts
// whatever bytes its caller hands it — but a real collateral-fetch
// hook should not forward an envelope it hasn't itself checked.
func (c *Client) verifyEnvelope(body []byte, fieldName, issuerChainHeader string) error {
	if issuerChainHeader == "" {
		return fmt.Errorf("missing issuer chain header")
	}

	var envelope struct {
		Signature string `json:"signature"`
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope signature: %w", err)
	}
	signed, ok := fields[fieldName]
	if !ok {
		return fmt.Errorf("envelope missing %q", fieldName)
	}
	if envelope.Signature == "" {
		return fmt.Errorf("envelope missing signature")
	}

	rawSig, err := hex.DecodeString(envelope.Signature)
	if err != nil {
		return fmt.Errorf("signature is not valid hex: %w", err)
	}
	derSig, err := quotesig.RawSigToASN1(rawSig)
	if err != nil {
		return fmt.Errorf("convert signature: %w", err)
	}

	chainPEM, err := url.QueryUnescape(issuerChainHeader)
	if err != nil {
		return fmt.Errorf("decode issuer chain header: %w", err)
	}
	blocks := decode.ExtractPEMCerts([]byte(chainPEM))
	if len(blocks) == 0 {
		return fmt.Errorf("issuer chain header has no certificates")
	}
	leaf, err := certchain.ParsePEM(blocks[0])
	if err != nil {
		return fmt.Errorf("parse issuer leaf: %w", err)
	}

	if !leaf.EcdsaVerify(signed, derSig) {
		return fmt.Errorf("envelope signature does not verify against issuer chain")
	}
	return nil
}

// FetchAndCacheRoot retrieves Intel's SGX Root CA certificate PEM from
// rootURL (see certchain.DefaultRootHint) and caches it the same way
// other collateral is cached. Deployments typically call this once at
// startup and pass the result as Config.PinnedRootCerts.
func (c *Client) FetchAndCacheRoot(ctx context.Context, rootURL string) ([]byte, error) {
	c.mu.Lock()
	key := "root:" + rootURL
	if c.cache != nil {
		if entry, ok := c.cache.Get(key); ok && time.Since(entry.fetched) < c.cacheTTL {
			c.mu.Unlock()
			return entry.body, nil
		}
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &CollateralUnavailable{Kind: "root_ca", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rootURL, nil)
	if err != nil {
		return nil, &CollateralUnavailable{Kind: "root_ca", Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CollateralUnavailable{Kind: "root_ca", Cause: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CollateralUnavailable{Kind: "root_ca", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &CollateralUnavailable{Kind: "root_ca", Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	c.mu.Lock()
	if c.cache != nil {
		c.cache.Add(key, &cacheEntry{body: body, fetched: time.Now()})
	}
	c.mu.Unlock()
	return body, nil
}

// fingerprint returns the hex of the first 8 bytes of b's SHA-256
// digest: a short identifier for a collateral blob that does not
// reveal its content.
func fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
