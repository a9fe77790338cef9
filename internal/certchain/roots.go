package certchain

// DefaultRootHint documents what a deployment is expected to pin when a
// verifier Config supplies no PinnedRootCerts of its own (spec §4.G:
// "Otherwise Intel's SGX Root CA is implicit"). This package does not
// embed Intel's production root certificate bytes: distributing a
// vendor's live trust anchor inside a library is a supply-chain risk,
// and a copy that silently drifted from Intel's actual, occasionally
// rotated root would fail closed in the worst possible way (accepting
// an attacker's substitute chain because nobody pinned anything real).
// Deployments are expected to supply the current PEM via
// Config.PinnedRootCerts, typically fetched once from
// https://certificates.trustedservices.intel.com/IntelSGXRootCA.pem
// and pinned by the caller (internal/intelclient ships a small helper,
// FetchAndCacheRoot, that does exactly this and caches the result).
const DefaultRootHint = "https://certificates.trustedservices.intel.com/IntelSGXRootCA.pem"
